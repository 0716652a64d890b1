// Package orchestrator runs the conversation pipeline: capture,
// classify, execute, speak. One turn is in flight at a time; the wake
// gate drops activations that arrive mid-turn.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/clborne/parvis/internal/bus"
	"github.com/clborne/parvis/internal/history"
	"github.com/clborne/parvis/internal/intent"
	"github.com/clborne/parvis/internal/llm"
	"github.com/clborne/parvis/internal/logging"
	"github.com/clborne/parvis/internal/speech"
	"github.com/clborne/parvis/internal/vision"
	"github.com/clborne/parvis/internal/wake"
)

// Spoken when a stage fails after capture succeeded. The user always
// hears something rather than silence.
const (
	apologyThinking = "I'm sorry, I'm having trouble thinking right now. Please try again in a moment."
	apologyVision   = "I'm sorry, I can't see anything right now."
	apologyHandler  = "I'm sorry, something went wrong with that request."
)

// Timeouts bound each pipeline stage.
type Timeouts struct {
	Capture    time.Duration
	Generation time.Duration
	Handler    time.Duration
	Synthesis  time.Duration
}

// DefaultTimeouts returns the stage bounds used when configuration does
// not override them.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Capture:    10 * time.Second,
		Generation: 30 * time.Second,
		Handler:    5 * time.Second,
		Synthesis:  15 * time.Second,
	}
}

// Deps are the collaborators the orchestrator drives. All are required
// except History.
type Deps struct {
	Registry    *intent.Registry
	Classifier  *intent.Classifier
	LLM         llm.Provider
	Vision      vision.Describer
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Gate        *wake.Gate
	Events      *bus.Bus
	History     *history.Log
}

// Orchestrator owns the turn state machine.
type Orchestrator struct {
	mode     Mode
	deps     Deps
	timeouts Timeouts
	state    atomic.Int32
	log      zerolog.Logger
}

// New creates an orchestrator for the given mode.
func New(mode Mode, deps Deps, timeouts Timeouts) *Orchestrator {
	if timeouts.Capture <= 0 {
		timeouts = DefaultTimeouts()
	}
	if deps.History == nil {
		deps.History = history.NewLog(history.DefaultMaxTurns)
	}
	return &Orchestrator{
		mode:     mode,
		deps:     deps,
		timeouts: timeouts,
		log:      logging.Component("orchestrator"),
	}
}

// Mode returns the operating mode.
func (o *Orchestrator) Mode() Mode { return o.mode }

// State returns the current pipeline stage.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// History returns the turn log.
func (o *Orchestrator) History() *history.Log { return o.deps.History }

func (o *Orchestrator) setState(turn *Turn, s State) {
	o.state.Store(int32(s))
	ev := bus.NewTurnEvent(bus.EventTurnStage, turn.ID, string(o.mode))
	ev.Stage = s.String()
	o.deps.Events.Publish(ev)
}

// Start binds the wake gate, wires timer completions back in as
// activation-equivalent announcements, and blocks running the source.
func (o *Orchestrator) Start(ctx context.Context, source wake.Source) error {
	o.deps.Gate.Bind(func() {
		defer o.deps.Gate.Release()
		o.RunTurn(ctx)
	})

	sub := o.deps.Events.Subscribe(bus.EventTimerFired, func(ev bus.Event) {
		o.Announce(ctx, ev.Content)
	})
	defer o.deps.Events.Unsubscribe(sub)

	o.log.Info().Str("mode", string(o.mode)).Str("wake_source", source.Name()).Msg("assistant ready")
	return source.Start(ctx, o.deps.Gate.Fire)
}

// RunInteractive drives turns back to back without a wake source,
// which is how text mode works: each turn blocks on the next input
// line. It returns when input is exhausted or the context ends.
func (o *Orchestrator) RunInteractive(ctx context.Context) error {
	sub := o.deps.Events.Subscribe(bus.EventTimerFired, func(ev bus.Event) {
		o.Announce(ctx, ev.Content)
	})
	defer o.deps.Events.Unsubscribe(sub)

	for ctx.Err() == nil {
		if !o.deps.Gate.TryAcquire() {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		turn := o.RunTurn(ctx)
		o.deps.Gate.Release()

		if turn.Utterance == "" && turn.Err != "" {
			// Capture gave up, which in text mode means end of input.
			return nil
		}
	}
	return ctx.Err()
}

// RunTurn executes one full capture-to-speech turn. The caller must hold
// the gate (or be the only driver, as in the say command).
func (o *Orchestrator) RunTurn(ctx context.Context) *Turn {
	turn := newTurn(o.mode)
	o.deps.Events.Publish(bus.NewTurnEvent(bus.EventTurnStarted, turn.ID, string(o.mode)))

	o.setState(turn, StateCapturing)
	capStart := time.Now()
	utterance, err := o.capture(ctx)
	turn.CaptureMs = millisSince(capStart)
	if err != nil {
		// Nothing was heard, so there is nothing to classify and
		// nothing worth apologizing for out loud.
		turn.Err = err.Error()
		o.log.Warn().Str("turn_id", turn.ID).Err(err).Msg("capture failed, turn aborted")
		o.deps.Events.Publish(bus.NewCollaboratorError("stt", turn.ID, err))
		return o.finalize(turn)
	}
	turn.Utterance = utterance

	return o.completeTurn(ctx, turn)
}

// RunText executes a turn for text that is already captured, as the say
// command and tests do.
func (o *Orchestrator) RunText(ctx context.Context, text string) *Turn {
	turn := newTurn(o.mode)
	turn.Utterance = text
	o.deps.Events.Publish(bus.NewTurnEvent(bus.EventTurnStarted, turn.ID, string(o.mode)))
	return o.completeTurn(ctx, turn)
}

// Announce speaks collaborator-initiated text, such as a finished timer.
// It competes for the gate like any activation and is dropped mid-turn.
func (o *Orchestrator) Announce(ctx context.Context, text string) *Turn {
	if text == "" {
		return nil
	}
	if !o.deps.Gate.TryAcquire() {
		return nil
	}
	defer o.deps.Gate.Release()

	turn := newTurn(o.mode)
	turn.Classification = intent.Classification{Tag: "timer", Confidence: 1.0}
	turn.Result = &intent.Result{Success: true, Response: text}
	o.deps.Events.Publish(bus.NewTurnEvent(bus.EventTurnStarted, turn.ID, string(o.mode)))
	o.speak(ctx, turn)
	return o.finalize(turn)
}

func (o *Orchestrator) capture(ctx context.Context) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeouts.Capture)
	defer cancel()
	return o.deps.Transcriber.Transcribe(cctx, o.timeouts.Capture)
}

func (o *Orchestrator) completeTurn(ctx context.Context, turn *Turn) *Turn {
	o.setState(turn, StateClassifying)
	classifyStart := time.Now()
	turn.Classification = o.deps.Classifier.Classify(turn.Utterance)
	turn.ClassifyMs = millisSince(classifyStart)

	o.setState(turn, StateExecuting)
	handleStart := time.Now()
	o.execute(ctx, turn)
	turn.HandleMs = millisSince(handleStart)

	o.speak(ctx, turn)
	return o.finalize(turn)
}

// execute routes the classified turn: direct handlers run locally under
// the handler timeout, vision and chat delegate to their collaborators,
// and unclassified utterances fall through to the language model.
func (o *Orchestrator) execute(ctx context.Context, turn *Turn) {
	if turn.Classification.Unclassified() {
		o.delegate(ctx, turn)
		return
	}

	def, ok := o.deps.Registry.Get(turn.Classification.Tag)
	if !ok {
		o.delegate(ctx, turn)
		return
	}

	switch def.Kind {
	case intent.KindChat:
		o.delegate(ctx, turn)
	case intent.KindVision:
		o.describeScene(ctx, turn)
	default:
		turn.Result = o.runHandler(ctx, def, turn)
	}
}

func (o *Orchestrator) delegate(ctx context.Context, turn *Turn) {
	gctx, cancel := context.WithTimeout(ctx, o.timeouts.Generation)
	defer cancel()

	reply, err := o.deps.LLM.Generate(gctx, turn.Utterance, 0)
	if err != nil {
		o.log.Warn().Str("turn_id", turn.ID).Err(err).Msg("llm generation failed")
		o.deps.Events.Publish(bus.NewCollaboratorError("llm", turn.ID, err))
		turn.Err = err.Error()
		turn.Result = &intent.Result{Success: false, Response: apologyThinking, Detail: err.Error()}
		return
	}
	turn.DelegateText = reply
}

func (o *Orchestrator) describeScene(ctx context.Context, turn *Turn) {
	gctx, cancel := context.WithTimeout(ctx, o.timeouts.Generation)
	defer cancel()

	description, err := o.deps.Vision.DescribeScene(gctx)
	if err != nil {
		o.log.Warn().Str("turn_id", turn.ID).Err(err).Msg("scene description failed")
		o.deps.Events.Publish(bus.NewCollaboratorError("vision", turn.ID, err))
		turn.Err = err.Error()
		turn.Result = &intent.Result{Success: false, Response: apologyVision, Detail: err.Error()}
		return
	}
	turn.Result = &intent.Result{Success: true, Response: description}
}

// runHandler executes a direct intent handler in its own goroutine so a
// stuck handler cannot wedge the pipeline past its timeout.
func (o *Orchestrator) runHandler(ctx context.Context, def *intent.Definition, turn *Turn) *intent.Result {
	hctx, cancel := context.WithTimeout(ctx, o.timeouts.Handler)
	defer cancel()

	type outcome struct {
		res intent.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := def.Handler(hctx, turn.Utterance, turn.Classification.Params)
		ch <- outcome{res, err}
	}()

	select {
	case <-hctx.Done():
		o.log.Warn().Str("turn_id", turn.ID).Str("intent", def.Tag).Msg("handler timed out")
		o.deps.Events.Publish(bus.NewCollaboratorError(def.Tag, turn.ID, hctx.Err()))
		turn.Err = "handler timed out"
		return &intent.Result{Success: false, Response: apologyHandler, Detail: "handler timed out"}
	case out := <-ch:
		if out.err != nil {
			o.log.Warn().Str("turn_id", turn.ID).Str("intent", def.Tag).Err(out.err).Msg("handler failed")
			turn.Err = out.err.Error()
			return &intent.Result{Success: false, Response: apologyHandler, Detail: out.err.Error()}
		}
		return &out.res
	}
}

func (o *Orchestrator) speak(ctx context.Context, turn *Turn) {
	text := turn.SpokenText()
	if text == "" {
		return
	}

	o.setState(turn, StateSpeaking)
	speakStart := time.Now()
	sctx, cancel := context.WithTimeout(ctx, o.timeouts.Synthesis)
	defer cancel()

	if err := o.deps.Synthesizer.Speak(sctx, text); err != nil {
		o.log.Warn().Str("turn_id", turn.ID).Err(err).Msg("synthesis failed")
		o.deps.Events.Publish(bus.NewCollaboratorError("tts", turn.ID, err))
		if turn.Err == "" {
			turn.Err = err.Error()
		}
	}
	turn.SpeakMs = millisSince(speakStart)
}

func (o *Orchestrator) finalize(turn *Turn) *Turn {
	turn.TotalMs = millisSince(turn.StartedAt)
	turn.Success = turn.Err == "" && (turn.Result == nil || turn.Result.Success)
	o.state.Store(int32(StateIdle))

	ev := bus.NewTurnEvent(bus.EventTurnCompleted, turn.ID, string(o.mode))
	ev.Content = turn.SpokenText()
	ev.Confidence = turn.Classification.Confidence
	ev.DurationMs = turn.TotalMs
	if turn.Err != "" {
		ev.Error = turn.Err
	}
	o.deps.Events.Publish(ev)

	if err := o.deps.History.Append(turn.record()); err != nil {
		o.log.Warn().Str("turn_id", turn.ID).Err(err).Msg("history append failed")
	}

	o.log.Info().
		Str("turn_id", turn.ID).
		Str("intent", turn.Classification.Tag).
		Bool("success", turn.Success).
		Int64("total_ms", turn.TotalMs).
		Msg("turn finished")
	return turn
}
