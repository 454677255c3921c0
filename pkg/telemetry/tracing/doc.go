// Package tracing provides OpenTelemetry tracing for Umbra.
//
// The pipeline opens one span per document and one child span per stage,
// so a slow detection pass or a misbehaving plugin hook shows up directly
// in the trace. Exporters are deliberately minimal: stdout for local
// inspection or none. Sampling supports always, never, and trace-ID ratio,
// all parent-based.
//
// When tracing is disabled New returns a noop tracer, so call sites never
// branch on whether tracing is on.
package tracing
