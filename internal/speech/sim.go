package speech

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// simUtterances is the default rotation for simulated capture, covering
// every builtin intent plus open-ended chat.
var simUtterances = []string{
	"Set a timer for 5 minutes",
	"What time is it?",
	"How do you say hello in Spanish?",
	"What's the weather like?",
	"What do you see?",
	"Tell me something interesting",
}

// SimTranscriber cycles through scripted utterances, standing in for a
// microphone during simulated operation.
type SimTranscriber struct {
	mu         sync.Mutex
	next       int
	utterances []string
}

// NewSimTranscriber creates a simulated transcriber with the default
// utterances.
func NewSimTranscriber() *SimTranscriber {
	return &SimTranscriber{utterances: simUtterances}
}

// NewSimTranscriberWithUtterances creates a simulated transcriber over a
// fixed script.
func NewSimTranscriberWithUtterances(utterances []string) *SimTranscriber {
	if len(utterances) == 0 {
		utterances = simUtterances
	}
	return &SimTranscriber{utterances: utterances}
}

func (t *SimTranscriber) Name() string { return "sim" }

// Transcribe returns the next scripted utterance.
func (t *SimTranscriber) Transcribe(ctx context.Context, maxDuration time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	utterance := t.utterances[t.next%len(t.utterances)]
	t.next++
	return utterance, nil
}

// SimSynthesizer logs what would have been spoken.
type SimSynthesizer struct{}

// NewSimSynthesizer creates a log-only synthesizer.
func NewSimSynthesizer() *SimSynthesizer { return &SimSynthesizer{} }

func (s *SimSynthesizer) Name() string { return "sim" }

func (s *SimSynthesizer) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Info().Str("text", text).Msg("speaking (simulated)")
	return nil
}
