package docgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with docgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithCollection adds a collection field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{Logger: l.Logger.With("collection", name)}
}

// WithOperation adds an operation field to the logger.
func (l *Logger) WithOperation(name string) *Logger {
	return &Logger{Logger: l.Logger.With("operation", name)}
}

// LogOperation logs the outcome of a collection operation.
func (l *Logger) LogOperation(ctx context.Context, operation, collection string, affected int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "operation failed",
			"operation", operation,
			"collection", collection,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "operation completed",
			"operation", operation,
			"collection", collection,
			"affected", affected,
		)
	}
}
