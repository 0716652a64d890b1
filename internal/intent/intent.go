// Package intent implements the intent classification engine: a registry of
// declarative intent definitions and a deterministic keyword-and-pattern
// scorer that maps a raw utterance to the best matching intent.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Kind controls how a matched intent is executed.
type Kind int

const (
	// KindDirect intents run their handler locally.
	KindDirect Kind = iota
	// KindVision intents delegate to the scene description service.
	KindVision
	// KindChat intents delegate the raw utterance to the language model.
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindVision:
		return "vision"
	case KindChat:
		return "chat"
	default:
		return "direct"
	}
}

// TagUnclassified is the reserved tag returned when no intent clears the
// confidence threshold.
const TagUnclassified = "unclassified"

// Result is the outcome of handler execution. Failed handlers report
// through Success and Detail rather than panicking the pipeline.
type Result struct {
	Success  bool           `json:"success"`
	Response string         `json:"response"`
	Payload  map[string]any `json:"payload,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

// HandlerFunc executes a matched intent. Params carries named capture
// groups from the winning pattern, empty when only keywords matched.
// Errors indicate internal failures; user-visible refusals are expressed
// as a Result with Success false.
type HandlerFunc func(ctx context.Context, utterance string, params map[string]string) (Result, error)

// Definition declares one recognizable intent.
type Definition struct {
	// Tag uniquely identifies the intent, e.g. "timer".
	Tag string
	// Keywords are normalized words or phrases whose presence raises the
	// confidence score.
	Keywords []string
	// Patterns are regular expressions matched against the normalized
	// utterance. Any single match maxes out the pattern component.
	Patterns []*Pattern
	// Kind selects the execution path.
	Kind Kind
	// Handler runs the intent. Nil for delegating kinds.
	Handler HandlerFunc
}

// Pattern is a compiled utterance pattern with optional names for its
// capture groups. A pattern whose expression failed to compile stays in
// the definition but never matches; classification must not abort because
// one dynamically supplied expression is malformed.
type Pattern struct {
	expr  string
	re    *regexp.Regexp
	names []string
}

// NewPattern compiles expr and assigns names to its capture groups in
// order. A compile failure is logged and yields a pattern that never
// matches.
func NewPattern(expr string, names ...string) *Pattern {
	re, err := regexp.Compile(expr)
	if err != nil {
		log.Warn().Str("pattern", expr).Err(err).Msg("malformed intent pattern, treating as non-match")
		return &Pattern{expr: expr, names: names}
	}
	return &Pattern{expr: expr, re: re, names: names}
}

// Match reports whether the normalized utterance matches and returns named
// captures when it does.
func (p *Pattern) Match(normalized string) (map[string]string, bool) {
	if p.re == nil {
		return nil, false
	}
	groups := p.re.FindStringSubmatch(normalized)
	if groups == nil {
		return nil, false
	}
	if len(p.names) == 0 {
		return nil, true
	}
	params := make(map[string]string, len(p.names))
	for i, name := range p.names {
		if i+1 < len(groups) {
			params[name] = groups[i+1]
		}
	}
	return params, true
}

// Normalize lowercases, trims and collapses internal whitespace so that
// scoring sees one canonical form of the utterance.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// containsWholeWord reports whether the normalized keyword occurs in the
// normalized text on word boundaries. Both sides are space-delimited after
// Normalize, so padding is enough.
func containsWholeWord(text, keyword string) bool {
	return strings.Contains(" "+text+" ", " "+keyword+" ")
}
