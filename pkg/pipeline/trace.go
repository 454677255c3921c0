package pipeline

import (
	"context"

	"umbra-hq/umbra/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/trace"
)

// stageSpan wraps an optional trace span so pipeline stages never have to
// branch on whether tracing is wired.
type stageSpan struct {
	span trace.Span
}

func (p *Pipeline) startSpan(ctx context.Context, name string) (context.Context, stageSpan) {
	if p.deps.Tracer == nil {
		return ctx, stageSpan{}
	}
	ctx, sp := p.deps.Tracer.Start(ctx, name)
	return ctx, stageSpan{span: sp}
}

func (s stageSpan) document(id string) {
	if s.span != nil {
		tracing.SetDocumentAttributes(s.span, id)
	}
}

func (s stageSpan) stage(name string) {
	if s.span != nil {
		tracing.SetStageAttributes(s.span, name)
	}
}

func (s stageSpan) outcome(outcome string, detected, redacted int) {
	if s.span != nil {
		tracing.SetOutcomeAttributes(s.span, outcome, detected, redacted)
	}
}

func (s stageSpan) fail(err error) {
	if s.span != nil {
		tracing.SetError(s.span, err)
	}
}

func (s stageSpan) end() {
	if s.span != nil {
		s.span.End()
	}
}
