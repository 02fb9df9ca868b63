// =============================================================================
// Receipt Ledger - Logger
// =============================================================================
//
// Structured logging for the CLI. Components receive a zerolog.Logger
// explicitly; per-receipt identifiers (fn, fd, fpd, date, sum) travel as
// fields rather than being formatted into the message.
//
// =============================================================================

package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// Format is "console" for human-readable output or "json".
	Format string

	// Out receives the log output. Defaults to os.Stderr so that command
	// output on stdout stays machine-readable.
	Out io.Writer
}

// New creates a logger from the options.
func New(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	if opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	if opts.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// NewWithWriter creates a JSON logger at debug level writing to w.
// Intended for tests that inspect log output.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
