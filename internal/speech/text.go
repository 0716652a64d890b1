package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// TextTranscriber reads utterances line by line from a reader, typically
// stdin. Exhausted or blank input is ErrNoAudio, matching what a silent
// microphone would report.
type TextTranscriber struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

// NewTextTranscriber creates a transcriber over r.
func NewTextTranscriber(r io.Reader) *TextTranscriber {
	return &TextTranscriber{scanner: bufio.NewScanner(r)}
}

func (t *TextTranscriber) Name() string { return "text" }

// Transcribe returns the next non-empty line.
func (t *TextTranscriber) Transcribe(ctx context.Context, maxDuration time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.scanner.Scan() {
		line := strings.TrimSpace(t.scanner.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := t.scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	return "", ErrNoAudio
}

// TextSynthesizer writes responses to a writer, typically stdout.
type TextSynthesizer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

// NewTextSynthesizer creates a synthesizer writing "Parvis: <text>"
// lines to w.
func NewTextSynthesizer(w io.Writer) *TextSynthesizer {
	return &TextSynthesizer{w: w, prefix: "Parvis: "}
}

func (s *TextSynthesizer) Name() string { return "text" }

func (s *TextSynthesizer) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "%s%s\n", s.prefix, text); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return nil
}
