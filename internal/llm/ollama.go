package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaEndpoint = "http://127.0.0.1:11434"
	defaultOllamaModel    = "llama3"
)

// OllamaProvider generates replies through a local Ollama server.
type OllamaProvider struct {
	config Config
	client *http.Client
}

// NewOllamaProvider creates an Ollama provider, filling in local defaults
// for any unset fields.
func NewOllamaProvider(cfg Config) *OllamaProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOllamaEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &OllamaProvider{
		config: cfg,
		// No Client.Timeout: generation is bounded by the caller's
		// context, and a hard client timeout would also cap model
		// load time on cold start.
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 2 * time.Minute,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

// Available checks that the server answers and has at least one model
// pulled. A server with no models cannot generate.
func (p *OllamaProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	return len(tags.Models) > 0
}

type ollamaGenerateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	System  string `json:"system,omitempty"`
	Stream  bool   `json:"stream"`
	Options struct {
		NumPredict int `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a non-streaming completion against /api/generate.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	genReq := ollamaGenerateRequest{
		Model:  p.config.Model,
		Prompt: prompt,
		System: SystemPrompt,
		Stream: false,
	}
	genReq.Options.NumPredict = maxTokens

	body, err := json.Marshal(genReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := readLimitedBody(resp.Body)
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(errBody))
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	reply := strings.TrimSpace(genResp.Response)
	if reply == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}
