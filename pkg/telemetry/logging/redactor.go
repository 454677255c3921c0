package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor scrubs identifier-shaped substrings from log attribute values.
// It guards against the engine's own telemetry becoming a side channel for
// the text it is asked to redact.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternSSN        = "ssn"
	PatternMRN        = "mrn"
	PatternEmail      = "email"
	PatternPhone      = "phone"
	PatternCreditCard = "credit_card"
	PatternIPv4       = "ipv4"
)

// NewRedactor creates a Redactor with the built-in pattern set.
func NewRedactor() *Redactor {
	mk := func(name, expr, repl string) redactPattern {
		return redactPattern{name: name, regex: regexp.MustCompile(expr), replacement: repl}
	}
	return &Redactor{
		patterns: []redactPattern{
			mk(PatternSSN, `\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`, "***-**-****"),
			mk(PatternMRN, `\b(?i:mrn)[-:\s]*\d{5,10}\b`, "MRN-*******"),
			mk(PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***"),
			mk(PatternPhone, `(?:\b|\()(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`, "***-***-****"),
			mk(PatternCreditCard, `\b(?:\d[ -]*?){13,16}\b`, "****-****-****-****"),
			mk(PatternIPv4, `\b(?:\d{1,3}\.){3}\d{1,3}\b`, "*.*.*.*"),
		},
	}
}

// RedactString scrubs every built-in pattern out of value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// sensitiveKey reports whether an attribute key names a value that should be
// masked outright regardless of its content.
func sensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{
		"password", "secret", "token", "api_key", "apikey",
		"authorization", "ssn", "mrn", "credit_card",
	} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// redactHandler is a slog.Handler that rewrites string attribute values
// through the Redactor before delegating to the wrapped handler.
type redactHandler struct {
	next     slog.Handler
	redactor *Redactor
}

func newRedactHandler(next slog.Handler, redactor *Redactor) *redactHandler {
	return &redactHandler{next: next, redactor: redactor}
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.redactor.RedactString(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &redactHandler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}

func (h *redactHandler) redactAttr(a slog.Attr) slog.Attr {
	if sensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactor.RedactString(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]any, 0, len(group))
		for _, g := range group {
			clean = append(clean, h.redactAttr(g))
		}
		return slog.Group(a.Key, clean...)
	default:
		return a
	}
}
