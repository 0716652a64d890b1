// Package speech defines the audio capability surface of the pipeline.
// Capture and synthesis are interfaces so that live hardware, simulated,
// and plain-text operation are interchangeable at construction time.
package speech

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoAudio indicates capture produced no usable utterance.
	ErrNoAudio = errors.New("no audio captured")

	// ErrDeviceUnavailable indicates the audio output device or the
	// synthesis backend could not be reached.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// Transcriber captures one utterance and returns its text.
type Transcriber interface {
	// Transcribe listens for at most maxDuration and returns the
	// recognized text. Silence or capture failure returns ErrNoAudio.
	Transcribe(ctx context.Context, maxDuration time.Duration) (string, error)

	// Name returns the transcriber identifier.
	Name() string
}

// Synthesizer speaks one response.
type Synthesizer interface {
	// Speak renders text as speech and blocks until playback hands
	// off. Callers bound the call with the context deadline.
	Speak(ctx context.Context, text string) error

	// Name returns the synthesizer identifier.
	Name() string
}
