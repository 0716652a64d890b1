package intent

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Scoring weights and the default acceptance threshold. The threshold is
// inclusive: a score exactly at the threshold matches.
const (
	keywordWeight    = 0.6
	patternWeight    = 0.4
	DefaultThreshold = 0.3
)

// Classification is the outcome of scoring one utterance.
type Classification struct {
	// Tag is the winning intent tag, or TagUnclassified.
	Tag string `json:"tag"`
	// Confidence is the winning score in [0, 1]. For unclassified results
	// it carries the best observed score, so near-misses can be diagnosed.
	Confidence float64 `json:"confidence"`
	// Params holds named captures from the winning intent's pattern,
	// nil when no pattern matched.
	Params map[string]string `json:"params,omitempty"`
}

// Unclassified reports whether no intent cleared the threshold.
func (c Classification) Unclassified() bool {
	return c.Tag == TagUnclassified
}

// Stats aggregates classifier activity since construction.
type Stats struct {
	TotalRequests     int            `json:"total_requests"`
	Matched           int            `json:"matched"`
	Unclassified      int            `json:"unclassified"`
	AverageConfidence float64        `json:"average_confidence"`
	ByTag             map[string]int `json:"by_tag"`
}

// Classifier scores utterances against a registry of intent definitions.
// Classification is deterministic: the same registry and utterance always
// produce the same result, and ties go to the earlier registration.
type Classifier struct {
	registry  *Registry
	threshold float64

	mu            sync.Mutex
	total         int
	matched       int
	sumConfidence float64
	byTag         map[string]int
}

// NewClassifier creates a classifier over the given registry using the
// default threshold.
func NewClassifier(registry *Registry) *Classifier {
	return NewClassifierWithThreshold(registry, DefaultThreshold)
}

// NewClassifierWithThreshold creates a classifier with a custom acceptance
// threshold.
func NewClassifierWithThreshold(registry *Registry, threshold float64) *Classifier {
	return &Classifier{
		registry:  registry,
		threshold: threshold,
		byTag:     make(map[string]int),
	}
}

// Classify scores the utterance against every registered intent and
// returns the best match, or TagUnclassified carrying the best observed
// score and nil params when nothing reaches the threshold. Empty and
// whitespace-only input is always unclassified with confidence 0.
func (c *Classifier) Classify(utterance string) Classification {
	normalized := Normalize(utterance)
	if normalized == "" {
		return c.record(Classification{Tag: TagUnclassified})
	}

	best := Classification{Tag: TagUnclassified}
	bestScore := -1.0
	for _, def := range c.registry.defs {
		score, params := c.score(def, normalized)
		// Strict greater-than keeps the earliest registration on ties.
		if score > bestScore {
			bestScore = score
			best = Classification{Tag: def.Tag, Confidence: score, Params: params}
		}
	}

	if bestScore < c.threshold {
		if bestScore < 0 {
			bestScore = 0
		}
		log.Debug().Str("utterance", normalized).Float64("best_score", bestScore).Str("nearest", best.Tag).Msg("utterance unclassified")
		// The best observed score is kept for diagnostics even though no
		// intent cleared the threshold.
		return c.record(Classification{Tag: TagUnclassified, Confidence: bestScore})
	}

	log.Debug().Str("utterance", normalized).Str("intent", best.Tag).Float64("confidence", best.Confidence).Msg("utterance classified")
	return c.record(best)
}

// score computes the weighted confidence for one definition: the keyword
// component is the fraction of the definition's keywords present as whole
// words, the pattern component is all-or-nothing on any pattern match.
func (c *Classifier) score(def *Definition, normalized string) (float64, map[string]string) {
	var keywordScore float64
	if len(def.Keywords) > 0 {
		matched := 0
		for _, kw := range def.Keywords {
			if containsWholeWord(normalized, Normalize(kw)) {
				matched++
			}
		}
		keywordScore = float64(matched) / float64(len(def.Keywords))
	}

	var patternScore float64
	var params map[string]string
	for _, p := range def.Patterns {
		if got, ok := p.Match(normalized); ok {
			patternScore = 1.0
			params = got
			break
		}
	}

	score := keywordWeight*keywordScore + patternWeight*patternScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, params
}

func (c *Classifier) record(result Classification) Classification {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	c.sumConfidence += result.Confidence
	if result.Unclassified() {
		return result
	}
	c.matched++
	c.byTag[result.Tag]++
	return result
}

// Stats returns a snapshot of classification counters.
func (c *Classifier) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byTag := make(map[string]int, len(c.byTag))
	for tag, n := range c.byTag {
		byTag[tag] = n
	}
	avg := 0.0
	if c.total > 0 {
		avg = c.sumConfidence / float64(c.total)
	}
	return Stats{
		TotalRequests:     c.total,
		Matched:           c.matched,
		Unclassified:      c.total - c.matched,
		AverageConfidence: avg,
		ByTag:             byTag,
	}
}
