// Package logging builds the zerolog logger used by every command.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New returns a logger writing to w at the given level ("debug", "info", ...).
// Unknown levels fall back to info. When pretty is set, output is the
// human-readable console format instead of JSON lines.
func New(w io.Writer, level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Stderr is New on os.Stderr with console formatting.
func Stderr(level string) zerolog.Logger {
	return New(os.Stderr, level, true)
}

// WithRun tags every event with a fresh run id and the command name.
func WithRun(l zerolog.Logger, command string) (zerolog.Logger, string) {
	id := uuid.NewString()
	return l.With().Str("run_id", id).Str("command", command).Logger(), id
}
