package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider generates replies through the OpenAI chat completions
// API.
type OpenAIProvider struct {
	config Config
	client openai.Client
}

// NewOpenAIProvider creates an OpenAI provider. The API key comes from
// config, typically loaded out of the environment.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &OpenAIProvider{
		config: cfg,
		client: openai.NewClient(opts...),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Available only checks configuration; a network probe per turn would
// cost more than the generation call itself.
func (p *OpenAIProvider) Available() bool {
	return p.config.APIKey != ""
}

// Generate runs one chat completion with the assistant system prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if p.config.APIKey == "" {
		return "", ErrUnavailable
	}
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(p.config.Model),
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}
