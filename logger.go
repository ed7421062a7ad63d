package searchcache

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with cache-specific context.
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
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithCache adds the cache name to every record.
func (l *Logger) WithCache(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("cache", name),
	}
}

// LogPut logs a put operation.
func (l *Logger) LogPut(ctx context.Context, key any, err error) {
	if err != nil {
		l.ErrorContext(ctx, "put failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "put completed",
			"key", key,
		)
	}
}

// LogQuery logs a query execution.
func (l *Logger) LogQuery(ctx context.Context, attributes []string, rows int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"attributes", attributes,
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"attributes", attributes,
			"rows", rows,
			"duration", duration,
		)
	}
}

// LogSkippedRecord logs a record excluded from a query result.
func (l *Logger) LogSkippedRecord(ctx context.Context, err error) {
	l.WarnContext(ctx, "record skipped",
		"error", err,
	)
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op string, version uint64, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot "+op+" completed",
			"version", version,
			"entries", entries,
		)
	}
}
