package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// requestIDKey carries the per-request correlation ID.
	requestIDKey contextKey = "request_id"

	// documentIDKey carries the ID of the document being processed.
	documentIDKey contextKey = "document_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom retrieves the request ID from the context, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithDocumentID adds a document ID to the context.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, documentIDKey, documentID)
}

// DocumentIDFrom retrieves the document ID from the context, or "".
func DocumentIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(documentIDKey).(string)
	return id
}

// contextHandler injects correlation IDs from the context into every record
// logged through the *Context variants of the slog methods.
type contextHandler struct {
	next slog.Handler
}

func newContextHandler(next slog.Handler) *contextHandler {
	return &contextHandler{next: next}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := RequestIDFrom(ctx); id != "" {
		record.AddAttrs(slog.String("request_id", id))
	}
	if id := DocumentIDFrom(ctx); id != "" {
		record.AddAttrs(slog.String("document_id", id))
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
