// Package logger builds the process logger on top of log/slog and
// carries request-scoped loggers through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     string // debug, info, warn, error
	Format    string // json, text
	AddSource bool
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  "info",
		Format: "json",
	}
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		h = slog.NewJSONHandler(opts.Output, handlerOpts)
	}
	return slog.New(h)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT PROPAGATION
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// WithRequestID returns a logger with request ID field added.
func WithRequestID(l *slog.Logger, requestID string) *slog.Logger {
	return l.With(RequestIDKey, requestID)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ATTRIBUTES
// ══════════════════════════════════════════════════════════════════════════════

func SubjectID(id string) slog.Attr     { return slog.String("subject_id", id) }
func Component(name string) slog.Attr   { return slog.String("component", name) }
func Period(name string) slog.Attr      { return slog.String("period", name) }
func Latency(d time.Duration) slog.Attr { return slog.Int64("duration_ms", d.Milliseconds()) }
