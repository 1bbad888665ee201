// Package simlog builds the shared zerolog logger every other package
// in dsim logs through, the same construction the teacher's
// pkg/reporting/logger.go uses: JSON by default, an optional
// zerolog.ConsoleWriter for interactive/text mode, and a configurable
// level.
package simlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors the four levels the simulator cares about; anything
// finer-grained than zerolog itself offers is unnecessary here.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures New.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// New builds a zerolog.Logger per Config. Every dsim component that
// logs (internal/simnet, transport/*, clients/*) takes a zerolog.Logger
// value rather than this package's types, so nothing outside cmd/dsim
// needs to import simlog directly.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()

	switch cfg.Level {
	case LevelDebug:
		logger = logger.Level(zerolog.DebugLevel)
	case LevelWarn:
		logger = logger.Level(zerolog.WarnLevel)
	case LevelError:
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
