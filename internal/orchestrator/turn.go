package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clborne/parvis/internal/history"
	"github.com/clborne/parvis/internal/intent"
)

// Mode selects which capability implementations the assistant runs with.
type Mode string

const (
	// ModeLive uses the microphone, speaker and camera sidecars.
	ModeLive Mode = "live"
	// ModeSimulated uses scripted input and logged output.
	ModeSimulated Mode = "simulated"
	// ModeText reads stdin and writes stdout.
	ModeText Mode = "text"
)

// ParseMode validates a mode name from configuration or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeSimulated, ModeText:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want live, simulated or text)", s)
	}
}

// State is the pipeline stage a turn is in.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateClassifying
	StateExecuting
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateClassifying:
		return "classifying"
	case StateExecuting:
		return "executing"
	case StateSpeaking:
		return "speaking"
	default:
		return "idle"
	}
}

// Turn is one pass through the pipeline. A finalized turn carries either
// a handler Result or delegated text, never both.
type Turn struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	StartedAt time.Time `json:"started_at"`

	Utterance      string                `json:"utterance,omitempty"`
	Classification intent.Classification `json:"classification"`

	// Result is set when a handler (or an on-behalf collaborator such
	// as vision) produced the outcome.
	Result *intent.Result `json:"result,omitempty"`
	// DelegateText is set when the language model answered directly.
	DelegateText string `json:"delegate_text,omitempty"`

	Success bool   `json:"success"`
	Err     string `json:"error,omitempty"`

	CaptureMs  int64 `json:"capture_ms"`
	ClassifyMs int64 `json:"classify_ms"`
	HandleMs   int64 `json:"handle_ms"`
	SpeakMs    int64 `json:"speak_ms"`
	TotalMs    int64 `json:"total_ms"`
}

func newTurn(mode Mode) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
}

// SpokenText is what the synthesis stage says for this turn.
func (t *Turn) SpokenText() string {
	if t.DelegateText != "" {
		return t.DelegateText
	}
	if t.Result != nil {
		return t.Result.Response
	}
	return ""
}

// record flattens the turn for the history log.
func (t *Turn) record() history.Record {
	rec := history.Record{
		ID:         t.ID,
		Mode:       string(t.Mode),
		StartedAt:  t.StartedAt,
		Utterance:  t.Utterance,
		Tag:        t.Classification.Tag,
		Confidence: t.Classification.Confidence,
		Response:   t.SpokenText(),
		Delegated:  t.DelegateText != "",
		Success:    t.Success,
		Error:      t.Err,
		CaptureMs:  t.CaptureMs,
		ClassifyMs: t.ClassifyMs,
		HandleMs:   t.HandleMs,
		SpeakMs:    t.SpeakMs,
		TotalMs:    t.TotalMs,
	}
	return rec
}

func millisSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
