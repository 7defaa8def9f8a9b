package edgeport

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with edgeport-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithVolume adds a volume field to the logger.
func (l *Logger) WithVolume(vol uint8) *Logger {
	return &Logger{
		Logger: l.Logger.With("volume", vol),
	}
}

// LogOpen logs a volume open.
func (l *Logger) LogOpen(ctx context.Context, vol uint8, mode OpenMode, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"volume", vol,
			"mode", mode.String(),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "volume opened",
			"volume", vol,
			"mode", mode.String(),
		)
	}
}

// LogClose logs a volume close.
func (l *Logger) LogClose(ctx context.Context, vol uint8, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"volume", vol,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "volume closed",
			"volume", vol,
		)
	}
}

// LogIO logs a sector read or write.
func (l *Logger) LogIO(ctx context.Context, op string, vol uint8, start uint64, count uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"volume", vol,
			"start", start,
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"volume", vol,
			"start", start,
			"count", count,
		)
	}
}

// LogFlush logs a flush.
func (l *Logger) LogFlush(ctx context.Context, vol uint8, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"volume", vol,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "flush completed",
			"volume", vol,
		)
	}
}

// LogLock logs a metadata lock transition. attempts is the number of host
// lock calls an Acquire needed; it is 0 for other events.
func (l *Logger) LogLock(ctx context.Context, event string, attempts int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "metadata lock "+event+" failed",
			"error", err,
		)
		return
	}
	if attempts > 1 {
		l.DebugContext(ctx, "metadata lock "+event,
			"attempts", attempts,
		)
		return
	}
	l.DebugContext(ctx, "metadata lock "+event)
}
