// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvProduction selects the JSON handler.
const EnvProduction = "production"

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
// An empty name yields ok=false.
func ParseLevel(name string) (slog.Level, bool, error) {
	if strings.TrimSpace(name) == "" {
		return 0, false, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, false, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, true, nil
}

// NewLogger creates a logger writing to stdout. Production gets a JSON
// handler at info, anything else a text handler at debug. A non-empty level
// overrides the environment default; an invalid one is ignored.
func NewLogger(env, level string) *slog.Logger {
	return New(os.Stdout, env, level)
}

// New is NewLogger with an explicit writer.
func New(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if env == EnvProduction {
		opts.Level = slog.LevelInfo
	}
	if l, ok, err := ParseLevel(level); err == nil && ok {
		opts.Level = l
	}

	var handler slog.Handler
	if env == EnvProduction {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
