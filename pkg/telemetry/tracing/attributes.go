package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on pipeline spans. Custom keys live in the "umbra.*"
// namespace; values that could contain document text never become
// attributes, only counts and identifiers do.
const (
	AttrDocumentID = "umbra.document_id"
	AttrStage      = "umbra.stage"
	AttrOutcome    = "umbra.outcome"

	AttrSpansDetected = "umbra.spans.detected"
	AttrSpansRedacted = "umbra.spans.redacted"
	AttrFilterType    = "umbra.filter_type"

	AttrPlugin     = "umbra.plugin"
	AttrPluginHook = "umbra.plugin.hook"
)

// SetDocumentAttributes sets the per-document identifiers on a span.
func SetDocumentAttributes(span trace.Span, documentID string) {
	span.SetAttributes(attribute.String(AttrDocumentID, documentID))
}

// SetStageAttributes marks a span as covering one pipeline stage.
func SetStageAttributes(span trace.Span, stage string) {
	span.SetAttributes(attribute.String(AttrStage, stage))
}

// SetOutcomeAttributes records the document outcome and span counts.
func SetOutcomeAttributes(span trace.Span, outcome string, detected, redacted int) {
	span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int(AttrSpansDetected, detected),
		attribute.Int(AttrSpansRedacted, redacted),
	)
}

// SetPluginAttributes records which plugin hook a span covers.
func SetPluginAttributes(span trace.Span, plugin, hook string) {
	span.SetAttributes(
		attribute.String(AttrPlugin, plugin),
		attribute.String(AttrPluginHook, hook),
	)
}
