package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for admin request IDs.
	RequestIDKey contextKey = "request_id"

	// SnapshotIDKey is the context key for evaluation pass IDs.
	SnapshotIDKey contextKey = "snapshot_id"

	// SubjectKey is the context key for subject identifiers.
	SubjectKey contextKey = "subject"
)

var contextKeys = []contextKey{RequestIDKey, SnapshotIDKey, SubjectKey}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return value(ctx, RequestIDKey)
}

// WithSnapshotID adds an evaluation pass ID to the context.
func WithSnapshotID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SnapshotIDKey, id)
}

// GetSnapshotID retrieves the evaluation pass ID from the context.
func GetSnapshotID(ctx context.Context) string {
	return value(ctx, SnapshotIDKey)
}

// WithSubject adds a subject identifier to the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}

// GetSubject retrieves the subject identifier from the context.
func GetSubject(ctx context.Context) string {
	return value(ctx, SubjectKey)
}

func value(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextHandler adds the known context fields to each record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextKeys {
		if v := value(ctx, key); v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
