package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clborne/parvis/internal/bus"
	"github.com/clborne/parvis/internal/timer"
)

func builtinFixture(t *testing.T) (*Classifier, *Registry, *timer.Registry) {
	t.Helper()
	b := bus.New()
	t.Cleanup(func() { b.Close() })

	timers := timer.NewRegistry(b)
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltin(reg, BuiltinDeps{
		Timers: timers,
		Now:    func() time.Time { return time.Date(2025, time.March, 14, 15, 4, 0, 0, time.UTC) },
	}))
	return NewClassifier(reg), reg, timers
}

func TestBuiltinClassification(t *testing.T) {
	c, _, _ := builtinFixture(t)

	tests := []struct {
		utterance string
		wantTag   string
	}{
		{"Set a timer for 5 minutes", "timer"},
		{"start a timer for 30 seconds", "timer"},
		{"What time is it?", "clock"},
		{"what's today's date", "clock"},
		{"How do you say hello in Spanish?", "translation"},
		{"translate water into german", "translation"},
		{"what's the weather like", "weather"},
		{"What do you see?", "vision"},
		{"describe the room", "vision"},
		{"tell me a joke", "chat"},
		{"", TagUnclassified},
		{"asdf qwerty zxcv", TagUnclassified},
	}
	for _, tt := range tests {
		got := c.Classify(tt.utterance)
		assert.Equalf(t, tt.wantTag, got.Tag, "utterance %q", tt.utterance)
		if tt.wantTag != TagUnclassified {
			assert.GreaterOrEqualf(t, got.Confidence, DefaultThreshold, "utterance %q", tt.utterance)
		}
	}
}

func TestFreshRegistriesClassifyIdentically(t *testing.T) {
	first, _, _ := builtinFixture(t)
	second, _, _ := builtinFixture(t)

	utterances := []string{
		"Set a timer for 5 minutes",
		"What time is it?",
		"How do you say hello in Spanish?",
		"What do you see?",
		"tell me a joke",
		"asdf qwerty zxcv",
		"",
	}
	for _, u := range utterances {
		assert.Equalf(t, first.Classify(u), second.Classify(u), "utterance %q", u)
	}
}

func TestTimerHandler(t *testing.T) {
	c, reg, timers := builtinFixture(t)

	got := c.Classify("Set a timer for 5 minutes")
	require.Equal(t, "timer", got.Tag)
	require.Equal(t, "5", got.Params["quantity"])
	require.Equal(t, "minutes", got.Params["unit"])

	def, _ := reg.Get("timer")
	res, err := def.Handler(context.Background(), "Set a timer for 5 minutes", got.Params)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Timer set for 5 minutes.", res.Response)
	assert.Equal(t, 300, res.Payload["seconds"])

	active := timers.Active()
	require.Len(t, active, 1)
	assert.Equal(t, active[0].CreatedAt.Add(5*time.Minute), active[0].ExpiresAt)
	require.NoError(t, timers.Cancel(active[0].ID))
}

func TestTimerHandlerFallbackParse(t *testing.T) {
	_, reg, timers := builtinFixture(t)

	def, _ := reg.Get("timer")
	res, err := def.Handler(context.Background(), "timer please, 2 minutes", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Timer set for 2 minutes.", res.Response)

	for _, tm := range timers.Active() {
		require.NoError(t, timers.Cancel(tm.ID))
	}
}

func TestTimerHandlerUnparseableDuration(t *testing.T) {
	_, reg, timers := builtinFixture(t)

	def, _ := reg.Get("timer")
	res, err := def.Handler(context.Background(), "set a timer", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Response, "5 minutes")
	assert.Equal(t, 0, timers.Len())
}

func TestClockHandlerTimeForm(t *testing.T) {
	c, reg, _ := builtinFixture(t)

	got := c.Classify("What time is it?")
	require.Equal(t, "clock", got.Tag)

	def, _ := reg.Get("clock")
	res, err := def.Handler(context.Background(), "What time is it?", got.Params)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "It's currently 3:04 PM.", res.Response)
}

func TestClockHandlerDateForm(t *testing.T) {
	_, reg, _ := builtinFixture(t)

	def, _ := reg.Get("clock")
	res, err := def.Handler(context.Background(), "what's today's date", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Today is Friday, March 14, 2025.", res.Response)
}

func TestTranslationHandler(t *testing.T) {
	c, reg, _ := builtinFixture(t)

	got := c.Classify("How do you say hello in Spanish?")
	require.Equal(t, "translation", got.Tag)
	require.Equal(t, "hello", got.Params["word"])
	require.Equal(t, "spanish", got.Params["language"])

	def, _ := reg.Get("translation")
	res, err := def.Handler(context.Background(), "How do you say hello in Spanish?", got.Params)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Response, "hola")
	assert.Equal(t, "hola", res.Payload["translation"])
}

func TestTranslationHandlerUnknownWord(t *testing.T) {
	_, reg, _ := builtinFixture(t)

	def, _ := reg.Get("translation")
	res, err := def.Handler(context.Background(), "", map[string]string{"word": "xylophone", "language": "french"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Response, "xylophone")
}

func TestTranslationHandlerMissingParams(t *testing.T) {
	_, reg, _ := builtinFixture(t)

	def, _ := reg.Get("translation")
	res, err := def.Handler(context.Background(), "translate something", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestWeatherHandlerOffline(t *testing.T) {
	_, reg, _ := builtinFixture(t)

	def, _ := reg.Get("weather")
	res, err := def.Handler(context.Background(), "what's the weather", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Response)
}

func TestBuiltinKinds(t *testing.T) {
	_, reg, _ := builtinFixture(t)

	vision, _ := reg.Get("vision")
	assert.Equal(t, KindVision, vision.Kind)
	assert.Nil(t, vision.Handler)

	chat, _ := reg.Get("chat")
	assert.Equal(t, KindChat, chat.Kind)
	assert.Nil(t, chat.Handler)

	tm, _ := reg.Get("timer")
	assert.Equal(t, KindDirect, tm.Kind)
	assert.NotNil(t, tm.Handler)
}
