package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clborne/parvis/internal/timer"
)

// BuiltinDeps carries the collaborators the builtin intent handlers need.
type BuiltinDeps struct {
	// Timers receives timers created by the timer intent.
	Timers *timer.Registry
	// Languages restricts which translation targets are offered.
	Languages []string
	// Now supplies the current time for the clock intent. Defaults to
	// time.Now.
	Now func() time.Time
}

// RegisterBuiltin installs the builtin intents. Registration order is the
// tie-break order, so the more specific intents go first and the chat
// fallback goes last.
func RegisterBuiltin(reg *Registry, deps BuiltinDeps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if len(deps.Languages) == 0 {
		deps.Languages = []string{"spanish", "french", "german"}
	}

	defs := []*Definition{
		visionIntent(),
		timerIntent(deps.Timers),
		weatherIntent(),
		clockIntent(deps.Now),
		translationIntent(deps.Languages),
		chatIntent(),
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func visionIntent() *Definition {
	return &Definition{
		Tag:      "vision",
		Kind:     KindVision,
		Keywords: []string{"see", "look", "camera", "describe", "picture", "what do you see", "in front of you"},
		Patterns: []*Pattern{
			NewPattern(`what (?:do|can) you see`),
			NewPattern(`describe (?:the|this|what)`),
			NewPattern(`look at (?:the|this)`),
		},
	}
}

var durationFallback = regexp.MustCompile(`(\d+)\s+(second|minute|hour)s?\b`)

func timerIntent(timers *timer.Registry) *Definition {
	return &Definition{
		Tag:      "timer",
		Kind:     KindDirect,
		Keywords: []string{"timer", "alarm", "remind", "countdown", "set a timer", "wake me"},
		Patterns: []*Pattern{
			NewPattern(`(?:set|start)(?: a| another)? timer for (\d+) (second|seconds|minute|minutes|hour|hours)`, "quantity", "unit"),
			NewPattern(`timer for (\d+) (second|seconds|minute|minutes|hour|hours)`, "quantity", "unit"),
			NewPattern(`remind me in (\d+) (second|seconds|minute|minutes|hour|hours)`, "quantity", "unit"),
		},
		Handler: func(ctx context.Context, utterance string, params map[string]string) (Result, error) {
			d, ok := parseTimerDuration(utterance, params)
			if !ok {
				return Result{
					Success:  false,
					Response: "I couldn't tell how long the timer should be. Try something like 'set a timer for 5 minutes'.",
					Detail:   "unparseable duration",
				}, nil
			}
			created, err := timers.Create(d)
			if err != nil {
				return Result{}, fmt.Errorf("create timer: %w", err)
			}
			return Result{
				Success:  true,
				Response: fmt.Sprintf("Timer set for %s.", timer.FormatDuration(created.Duration)),
				Payload: map[string]any{
					"timer_id":   created.ID,
					"seconds":    int(created.Duration.Seconds()),
					"expires_at": created.ExpiresAt,
				},
			}, nil
		},
	}
}

// parseTimerDuration reads the quantity and unit from pattern captures,
// falling back to a scan of the utterance when only keywords matched.
func parseTimerDuration(utterance string, params map[string]string) (time.Duration, bool) {
	quantity, unit := params["quantity"], params["unit"]
	if quantity == "" || unit == "" {
		groups := durationFallback.FindStringSubmatch(Normalize(utterance))
		if groups == nil {
			return 0, false
		}
		quantity, unit = groups[1], groups[2]
	}
	n, err := strconv.Atoi(quantity)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch strings.TrimSuffix(unit, "s") {
	case "second":
		return time.Duration(n) * time.Second, true
	case "minute":
		return time.Duration(n) * time.Minute, true
	case "hour":
		return time.Duration(n) * time.Hour, true
	default:
		return 0, false
	}
}

func weatherIntent() *Definition {
	return &Definition{
		Tag:      "weather",
		Kind:     KindDirect,
		Keywords: []string{"weather", "forecast", "temperature", "rain", "sunny", "snow"},
		Patterns: []*Pattern{
			NewPattern(`(?:what's|whats|what is|how's|hows|how is) the weather`),
			NewPattern(`is it (?:going to )?rain`),
		},
		Handler: func(ctx context.Context, utterance string, params map[string]string) (Result, error) {
			return Result{
				Success:  true,
				Response: "I don't have live weather data right now, but it's always a good idea to check before heading out!",
			}, nil
		},
	}
}

func clockIntent(now func() time.Time) *Definition {
	return &Definition{
		Tag:      "clock",
		Kind:     KindDirect,
		Keywords: []string{"time", "clock", "date", "today", "day", "hour"},
		Patterns: []*Pattern{
			NewPattern(`what time is it`),
			NewPattern(`what(?:'s| is) the time`),
			NewPattern(`what(?:'s| is) (?:today's|the) date`),
			NewPattern(`what day is it`),
		},
		Handler: func(ctx context.Context, utterance string, params map[string]string) (Result, error) {
			normalized := Normalize(utterance)
			t := now()
			if containsWholeWord(normalized, "date") || containsWholeWord(normalized, "day") || containsWholeWord(normalized, "today") {
				return Result{
					Success:  true,
					Response: t.Format("Today is Monday, January 2, 2006."),
				}, nil
			}
			return Result{
				Success:  true,
				Response: t.Format("It's currently 3:04 PM."),
			}, nil
		},
	}
}

// translations is the offline dictionary the translation intent answers
// from. Unknown words are refused rather than guessed.
var translations = map[string]map[string]string{
	"spanish": {
		"hello": "hola", "goodbye": "adiós", "thank you": "gracias",
		"please": "por favor", "yes": "sí", "no": "no",
		"water": "agua", "food": "comida", "house": "casa", "good": "bueno",
	},
	"french": {
		"hello": "bonjour", "goodbye": "au revoir", "thank you": "merci",
		"please": "s'il vous plaît", "yes": "oui", "no": "non",
		"water": "eau", "food": "nourriture", "house": "maison", "good": "bon",
	},
	"german": {
		"hello": "hallo", "goodbye": "auf wiedersehen", "thank you": "danke",
		"please": "bitte", "yes": "ja", "no": "nein",
		"water": "wasser", "food": "essen", "house": "haus", "good": "gut",
	},
}

func translationIntent(languages []string) *Definition {
	alternation := strings.Join(languages, "|")
	keywords := append([]string{"translate", "translation", "say", "how do you say"}, languages...)
	return &Definition{
		Tag:      "translation",
		Kind:     KindDirect,
		Keywords: keywords,
		Patterns: []*Pattern{
			NewPattern(`how do you say (.+?) in (`+alternation+`)`, "word", "language"),
			NewPattern(`translate (.+?) (?:to|into) (`+alternation+`)`, "word", "language"),
			NewPattern(`what is (.+?) in (`+alternation+`)`, "word", "language"),
		},
		Handler: func(ctx context.Context, utterance string, params map[string]string) (Result, error) {
			word, language := params["word"], params["language"]
			if word == "" || language == "" {
				return Result{
					Success:  false,
					Response: "I can translate a few words into Spanish, French or German. Try 'how do you say hello in Spanish'.",
					Detail:   "missing word or language",
				}, nil
			}
			word = strings.Trim(word, `"' ?`)
			dict, ok := translations[language]
			if !ok {
				return Result{
					Success:  false,
					Response: fmt.Sprintf("I don't speak %s yet.", language),
					Detail:   "unsupported language",
				}, nil
			}
			translated, ok := dict[word]
			if !ok {
				return Result{
					Success:  false,
					Response: fmt.Sprintf("I don't know how to say %q in %s yet. I know simple words like hello, goodbye and thank you.", word, titleCase(language)),
					Detail:   "unknown word",
				}, nil
			}
			return Result{
				Success:  true,
				Response: fmt.Sprintf("%q in %s is %q.", word, titleCase(language), translated),
				Payload: map[string]any{
					"word":        word,
					"language":    language,
					"translation": translated,
				},
			}, nil
		},
	}
}

func chatIntent() *Definition {
	return &Definition{
		Tag:      "chat",
		Kind:     KindChat,
		Keywords: []string{"hello", "hi", "hey", "thanks", "who are you", "your name", "how are you", "help", "joke"},
		Patterns: []*Pattern{
			NewPattern(`tell me a joke`),
			NewPattern(`who are you`),
			NewPattern(`(?:hello|hi|hey)(?: there)?$`),
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
