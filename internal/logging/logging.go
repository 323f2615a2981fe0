// Package logging builds the process [log/slog] logger from the loaded
// configuration and carries it through command contexts.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/watchrun/internal/config"
)

type ctxKey struct{}

// Setup creates a logger for cfg writing to stderr and installs it as the
// slog default.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter is Setup with an explicit destination, used by tests to
// capture or suppress output.
func SetupWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.EffectiveLogLevel())}

	var handler slog.Handler

	switch cfg.LogFormat {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// ParseLevel converts a config log level to slog.Level. Unknown values map
// to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// ForTask returns the context logger annotated with a task name.
func ForTask(ctx context.Context, task string) *slog.Logger {
	return FromContext(ctx).With(slog.String("task", task))
}

// ForGroup returns the context logger annotated with a watch group name.
func ForGroup(ctx context.Context, group string) *slog.Logger {
	return FromContext(ctx).With(slog.String("group", group))
}
