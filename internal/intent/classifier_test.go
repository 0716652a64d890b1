package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello world"},
		{"  set   a TIMER  ", "set a timer"},
		{"\tWhat\ntime\r\nis it?  ", "what time is it?"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Tag: "greet", Keywords: []string{"hello"}})
	c := NewClassifier(reg)

	for _, in := range []string{"", "   ", "\t\n"} {
		got := c.Classify(in)
		assert.Equal(t, TagUnclassified, got.Tag)
		assert.Zero(t, got.Confidence)
		assert.Nil(t, got.Params)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Tag: "greet", Keywords: []string{"hello", "hi"}})
	c := NewClassifier(reg)

	got := c.Classify("asdf qwerty zxcv")
	assert.True(t, got.Unclassified())
	assert.Zero(t, got.Confidence)
}

func TestUnclassifiedKeepsBestScore(t *testing.T) {
	reg := NewRegistry()
	// One of four keywords present scores 0.6 * 1/4 = 0.15, under the
	// threshold, and that near-miss score must survive in the result.
	reg.MustRegister(&Definition{Tag: "wide", Keywords: []string{"alpha", "beta", "gamma", "delta"}})
	c := NewClassifier(reg)

	got := c.Classify("alpha omega")
	assert.True(t, got.Unclassified())
	assert.InDelta(t, 0.15, got.Confidence, 1e-9)
	assert.Nil(t, got.Params)
}

func TestThresholdIsInclusive(t *testing.T) {
	reg := NewRegistry()
	// One of two keywords present scores exactly 0.6 * 0.5 = 0.3.
	reg.MustRegister(&Definition{Tag: "half", Keywords: []string{"alpha", "beta"}})

	at := NewClassifierWithThreshold(reg, 0.3)
	got := at.Classify("alpha gamma")
	assert.Equal(t, "half", got.Tag)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)

	// The same score fails a threshold nudged just above it, so the
	// boundary itself must be accepting.
	above := NewClassifierWithThreshold(reg, 0.3000001)
	assert.True(t, above.Classify("alpha gamma").Unclassified())
}

func TestTieBreakPrefersEarlierRegistration(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Tag: "first", Keywords: []string{"ping"}})
	reg.MustRegister(&Definition{Tag: "second", Keywords: []string{"ping"}})
	c := NewClassifier(reg)

	for i := 0; i < 10; i++ {
		got := c.Classify("ping")
		require.Equal(t, "first", got.Tag)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{
		Tag:      "order",
		Keywords: []string{"pizza", "order", "deliver"},
		Patterns: []*Pattern{NewPattern(`order (?:a |some )?(.+)`, "item")},
	})
	reg.MustRegister(&Definition{Tag: "cancel", Keywords: []string{"cancel", "stop"}})
	c := NewClassifier(reg)

	first := c.Classify("Order a pizza")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Classify("Order a pizza"))
	}
}

func TestKeywordMatchingIsWholeWord(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Tag: "cat", Keywords: []string{"cat"}})
	c := NewClassifierWithThreshold(reg, 0.1)

	assert.Equal(t, "cat", c.Classify("feed the cat now").Tag)
	assert.True(t, c.Classify("concatenate the files").Unclassified())
	assert.True(t, c.Classify("category theory").Unclassified())
}

func TestMultiWordKeyword(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Tag: "timer", Keywords: []string{"set a timer", "countdown"}})
	c := NewClassifierWithThreshold(reg, 0.1)

	got := c.Classify("please set a timer")
	assert.Equal(t, "timer", got.Tag)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)
}

func TestPatternParamsExtracted(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{
		Tag:      "translate",
		Keywords: []string{"say"},
		Patterns: []*Pattern{NewPattern(`how do you say (.+?) in (spanish|french)`, "word", "language")},
	})
	c := NewClassifier(reg)

	got := c.Classify("How do you say hello in Spanish?")
	require.Equal(t, "translate", got.Tag)
	assert.Equal(t, "hello", got.Params["word"])
	assert.Equal(t, "spanish", got.Params["language"])
}

func TestMalformedPatternIsNonMatch(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{
		Tag:      "broken",
		Keywords: []string{"fix"},
		Patterns: []*Pattern{NewPattern(`([unclosed`), NewPattern(`fix (.+)`, "thing")},
	})
	c := NewClassifier(reg)

	// The malformed pattern is skipped; the valid one still matches.
	got := c.Classify("fix the door")
	require.Equal(t, "broken", got.Tag)
	assert.Equal(t, "the door", got.Params["thing"])
}

func TestPatternOnlyScore(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{
		Tag:      "exact",
		Patterns: []*Pattern{NewPattern(`^open the pod bay doors$`)},
	})
	c := NewClassifier(reg)

	got := c.Classify("open the pod bay doors")
	assert.Equal(t, "exact", got.Tag)
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)
}

func TestStats(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Definition{Tag: "greet", Keywords: []string{"hello"}, Patterns: []*Pattern{NewPattern(`^hello`)}})
	c := NewClassifier(reg)

	c.Classify("hello there")
	c.Classify("hello")
	c.Classify("asdf qwerty")

	stats := c.Stats()
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Unclassified)
	assert.Equal(t, 2, stats.ByTag["greet"])
	assert.Greater(t, stats.AverageConfidence, 0.0)
}
