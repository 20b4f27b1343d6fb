package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey string

// CompilationIDKey is both the context key and the log attribute name of a
// compilation id.
const CompilationIDKey contextKey = "compilation_id"

// NewCompilationID returns a fresh random id.
func NewCompilationID() string {
	return uuid.NewString()
}

// WithCompilationID stores id in ctx.
func WithCompilationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CompilationIDKey, id)
}

// CompilationID returns the id stored in ctx, or "".
func CompilationID(ctx context.Context) string {
	if id, ok := ctx.Value(CompilationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns log annotated with the compilation id in ctx, if any.
func FromContext(ctx context.Context, log *slog.Logger) *slog.Logger {
	if id := CompilationID(ctx); id != "" {
		return log.With(string(CompilationIDKey), id)
	}
	return log
}
