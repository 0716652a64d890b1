// Package logging configures the global zerolog logger for Parvis.
// Console output goes to stderr with a human-readable writer; an optional
// file sink receives the same events as JSON for post-mortem debugging.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls logger behavior.
type Config struct {
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string
	// File is an optional path for persistent JSON logs.
	File string
	// Pretty enables the human-readable console writer.
	Pretty bool
}

// Setup installs the global logger. It is safe to call more than once;
// the last call wins.
func Setup(cfg Config) error {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writers []io.Writer
	if cfg.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	} else {
		writers = append(writers, os.Stderr)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return nil
}

// Component returns a logger tagged with a component name, e.g. "classifier".
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// ParseLevel maps a level string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
