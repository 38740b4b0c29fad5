// Package log provides the logging infrastructure shared by all prepbot
// components.
//
// Components receive a logger through their constructor and add context
// with logger.With("component", ...). There is no package-level global:
// only the CLI entry point calls slog.SetDefault.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. Using the standard library
// type directly keeps full compatibility with the slog ecosystem and
// avoids a custom interface that would only mirror it.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo.
	Level slog.Level

	// JSON enables JSON output instead of the text handler.
	JSON bool

	// AddSource attaches source file information to log entries.
	AddSource bool
}

// New creates a logger writing to os.Stderr. Stderr keeps stdout free
// for command output.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Useful in tests that
// want to inspect log output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards everything. Intended for tests
// only; production code should always log somewhere.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
