package llm

import (
	"context"
	"sync"
)

// cannedReplies cycle through when running simulated with no real model
// behind the assistant.
var cannedReplies = []string{
	"That's an interesting question. I'm running without a language model right now, so I can only offer small talk.",
	"I'm not sure about that one, but I'm happy to keep you company.",
	"Good question! My thinking parts are offline at the moment.",
	"I heard you, but I don't have a clever answer without my language model.",
}

// CannedProvider is the offline stand-in for a real language model. It
// answers every prompt from a fixed rotation.
type CannedProvider struct {
	mu      sync.Mutex
	next    int
	replies []string
}

// NewCannedProvider creates a canned provider with the default replies.
func NewCannedProvider() *CannedProvider {
	return &CannedProvider{replies: cannedReplies}
}

// NewCannedProviderWithReplies creates a canned provider that rotates
// through the given replies.
func NewCannedProviderWithReplies(replies []string) *CannedProvider {
	if len(replies) == 0 {
		replies = cannedReplies
	}
	return &CannedProvider{replies: replies}
}

func (p *CannedProvider) Name() string    { return "canned" }
func (p *CannedProvider) Available() bool { return true }

// Generate returns the next reply in rotation. The context is honored so
// behavior matches the real providers under cancellation.
func (p *CannedProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	reply := p.replies[p.next%len(p.replies)]
	p.next++
	return reply, nil
}
