package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultSTTEndpoint = "http://127.0.0.1:8020"
	defaultTTSEndpoint = "http://127.0.0.1:8021"
)

// HTTPTranscriber drives a speech-to-text sidecar that owns the
// microphone. One POST is one listen-and-transcribe cycle.
type HTTPTranscriber struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTranscriber creates a transcriber against the sidecar endpoint.
func NewHTTPTranscriber(endpoint string) *HTTPTranscriber {
	if endpoint == "" {
		endpoint = defaultSTTEndpoint
	}
	return &HTTPTranscriber{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 2 * time.Minute,
			},
		},
	}
}

func (t *HTTPTranscriber) Name() string { return "http" }

type transcribeRequest struct {
	MaxDurationSeconds float64 `json:"max_duration_seconds"`
}

type transcribeResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration,omitempty"`
	Latency  int64   `json:"latency_ms,omitempty"`
}

// Transcribe asks the sidecar to listen and returns the recognized text.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, maxDuration time.Duration) (string, error) {
	body, err := json.Marshal(transcribeRequest{MaxDurationSeconds: maxDuration.Seconds()})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn().Int("status", resp.StatusCode).Str("body", string(errBody)).Msg("stt sidecar error")
		return "", fmt.Errorf("%w: status %d", ErrNoAudio, resp.StatusCode)
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", ErrNoAudio
	}
	return text, nil
}

// HTTPSynthesizer drives a text-to-speech sidecar that owns the speaker.
type HTTPSynthesizer struct {
	endpoint string
	voice    string
	client   *http.Client
}

// NewHTTPSynthesizer creates a synthesizer against the sidecar endpoint.
func NewHTTPSynthesizer(endpoint, voice string) *HTTPSynthesizer {
	if endpoint == "" {
		endpoint = defaultTTSEndpoint
	}
	return &HTTPSynthesizer{
		endpoint: strings.TrimRight(endpoint, "/"),
		voice:    voice,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: time.Minute,
			},
		},
	}
}

func (s *HTTPSynthesizer) Name() string { return "http" }

type speakRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice,omitempty"`
}

// Speak sends text to the sidecar, which synthesizes and plays it.
func (s *HTTPSynthesizer) Speak(ctx context.Context, text string) error {
	body, err := json.Marshal(speakRequest{Input: text, Voice: s.voice})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/speak", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn().Int("status", resp.StatusCode).Str("body", string(errBody)).Msg("tts sidecar error")
		return fmt.Errorf("%w: status %d", ErrDeviceUnavailable, resp.StatusCode)
	}
	return nil
}
