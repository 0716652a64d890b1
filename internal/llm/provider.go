// Package llm provides the language model providers used for open-ended
// conversation: a local Ollama backend, the OpenAI API, and a canned
// provider for simulated and offline operation.
package llm

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnavailable indicates the provider is not configured or not
	// reachable.
	ErrUnavailable = errors.New("llm provider unavailable")

	// ErrEmptyResponse indicates the provider returned no text.
	ErrEmptyResponse = errors.New("llm returned empty response")
)

// MaxErrorBodySize limits how much of an error response body is read.
const MaxErrorBodySize = 1 * 1024 * 1024

func readLimitedBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, MaxErrorBodySize))
}

// Provider generates a free-form reply to an utterance the intent engine
// could not or chose not to handle locally.
type Provider interface {
	// Generate returns the model's reply. Callers bound the call with
	// the context deadline.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Name returns the provider identifier.
	Name() string

	// Available reports whether the provider is configured and reachable.
	Available() bool
}

// Config holds provider settings shared by the HTTP-backed providers.
type Config struct {
	// Endpoint is the API base URL.
	Endpoint string

	// APIKey authenticates hosted providers. Ignored by Ollama.
	APIKey string

	// Model is the model identifier.
	Model string

	// MaxTokens bounds the reply length when the caller does not.
	MaxTokens int

	// Timeout for availability probes. Generation itself is bounded by
	// the caller's context.
	Timeout time.Duration
}

// SystemPrompt frames every delegated utterance. Replies are spoken
// aloud, so the model is asked to keep them short.
const SystemPrompt = "You are Parvis, a helpful voice assistant. " +
	"Answer in one or two short spoken sentences. Do not use markdown or lists."
