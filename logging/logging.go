// Package logging builds zerolog loggers for the binary and its components
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates logger writing to stderr. Pretty enables human-readable console output.
func New(level string, pretty bool) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, pretty)
}

// NewWithWriter creates logger writing to w. Unknown level falls back to info.
func NewWithWriter(w io.Writer, level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(parsed).With().Timestamp().Logger()
	if err != nil {
		logger.Warn().Str("level", level).Msg("Invalid log level, using info")
	}
	return logger
}

// Component returns child logger tagged with component name
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
