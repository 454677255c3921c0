package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/confidence"
	"umbra-hq/umbra/pkg/disambiguation"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/span"
	"umbra-hq/umbra/pkg/telemetry/metrics"
	"umbra-hq/umbra/pkg/telemetry/tracing"

	"github.com/google/uuid"
)

// Document outcomes recorded on metrics and audit records.
const (
	OutcomeRedacted       = "redacted"
	OutcomeShortCircuited = "short_circuited"
	OutcomeError          = "error"
)

// Detector produces candidate spans for a document. Detection itself is an
// external collaborator; the pipeline only orchestrates it.
type Detector interface {
	DetectSpans(ctx context.Context, doc *plugin.Document) ([]span.Span, error)
}

// Redactor rewrites document text given the surviving spans. It returns
// the redacted text and the number of spans actually replaced.
type Redactor interface {
	Redact(ctx context.Context, text string, spans []span.Span) (string, int, error)
}

// AuditSink receives one record per completed pipeline pass. Sink failures
// are logged, never surfaced to the caller.
type AuditSink interface {
	Record(ctx context.Context, rec *audit.Record) error
}

// Config controls pipeline behavior.
type Config struct {
	// FailFast aborts the pass on the first plugin hook failure instead
	// of keeping the pre-hook value. Default: false
	FailFast bool `yaml:"fail_fast"`
}

// Deps are the collaborators a Pipeline orchestrates. Detector, Redactor,
// Plugins, Confidence, and Disambiguation are required; Audit, Collector,
// and Tracer are optional.
type Deps struct {
	Detector       Detector
	Redactor       Redactor
	Plugins        *plugin.Manager
	Confidence     *confidence.Engine
	Disambiguation *disambiguation.Engine

	Audit     AuditSink
	Collector *metrics.Collector
	Tracer    *tracing.Tracer
}

// Pipeline runs a document through the full redaction decision flow:
// plugin pre-hooks, detection, confidence modifiers, disambiguation,
// plugin pre-redaction hooks, redaction, and post-hooks.
type Pipeline struct {
	config Config
	deps   Deps
	logger *slog.Logger
}

// New creates a Pipeline. It returns an error when a required collaborator
// is missing.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Pipeline, error) {
	if deps.Detector == nil {
		return nil, fmt.Errorf("pipeline requires a detector")
	}
	if deps.Redactor == nil {
		return nil, fmt.Errorf("pipeline requires a redactor")
	}
	if deps.Plugins == nil {
		return nil, fmt.Errorf("pipeline requires a plugin manager")
	}
	if deps.Confidence == nil {
		return nil, fmt.Errorf("pipeline requires a confidence engine")
	}
	if deps.Disambiguation == nil {
		return nil, fmt.Errorf("pipeline requires a disambiguation engine")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "pipeline"),
	}, nil
}

// Process runs one document through every stage and returns the finished
// result. A short-circuit decision by a plugin returns that plugin's
// result without running detection or redaction.
func (p *Pipeline) Process(ctx context.Context, doc *plugin.Document) (*plugin.Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	start := time.Now()
	ctx, procSpan := p.startSpan(ctx, "pipeline.process")
	defer procSpan.end()
	procSpan.document(doc.ID)

	// Stage 1: preProcess hooks (legacy beforeRedaction runs here too).
	doc, err := p.runPreProcess(ctx, doc)
	if err != nil {
		return p.fail(ctx, procSpan, doc, start, err)
	}

	// Stage 2: short-circuit check.
	early, by, err := p.runShortCircuit(ctx, doc)
	if err != nil {
		return p.fail(ctx, procSpan, doc, start, err)
	}
	if early != nil {
		early.ShortCircuited = true
		early.DocumentID = doc.ID
		if early.OriginalText == "" {
			early.OriginalText = doc.Text
		}
		early.Duration = time.Since(start)
		procSpan.outcome(OutcomeShortCircuited, len(early.Spans), 0)
		p.record(ctx, doc, early, OutcomeShortCircuited, len(early.Spans), 0, early.Duration)
		if c := p.deps.Collector; c != nil {
			c.RecordShortCircuit(by)
		}
		p.logger.DebugContext(ctx, "document short-circuited",
			"document_id", doc.ID,
			"plugin", by,
		)
		return early, nil
	}

	// Stage 3: detection.
	spans, err := p.runDetect(ctx, doc)
	if err != nil {
		return p.fail(ctx, procSpan, doc, start, fmt.Errorf("detect: %w", err))
	}
	detected := len(spans)

	// Stage 4: postDetection hooks.
	spans, err = p.runSpanHooks(ctx, "postDetection", spans, doc, p.deps.Plugins.RunPostDetection)
	if err != nil {
		return p.fail(ctx, procSpan, doc, start, err)
	}

	// Stage 5: confidence modifiers.
	ptrs := toPointers(spans)
	p.runStage(ctx, "confidence", func(ctx context.Context) {
		p.deps.Confidence.ApplyModifiersToAll(doc.Text, ptrs)
	})

	// Stage 6: disambiguation picks one winner per contested range.
	var winners []*span.Span
	p.runStage(ctx, "disambiguation", func(ctx context.Context) {
		winners = p.deps.Disambiguation.DisambiguateAll(ctx, ptrs)
	})
	spans = fromPointers(winners)

	// Stage 7: preRedaction hooks.
	spans, err = p.runSpanHooks(ctx, "preRedaction", spans, doc, p.deps.Plugins.RunPreRedaction)
	if err != nil {
		return p.fail(ctx, procSpan, doc, start, err)
	}

	// Stage 8: redaction.
	redacted, replaced, err := p.runRedact(ctx, doc, spans)
	if err != nil {
		return p.fail(ctx, procSpan, doc, start, fmt.Errorf("redact: %w", err))
	}

	result := &plugin.Result{
		DocumentID:   doc.ID,
		OriginalText: doc.Text,
		RedactedText: redacted,
		Spans:        spans,
	}

	// Stage 9: postRedaction hooks (descending priority; legacy
	// afterRedaction runs here too).
	result, err = p.runPostRedaction(ctx, result)
	if err != nil {
		return p.fail(ctx, procSpan, doc, start, err)
	}

	result.Duration = time.Since(start)
	procSpan.outcome(OutcomeRedacted, detected, replaced)
	p.record(ctx, doc, result, OutcomeRedacted, detected, replaced, result.Duration)

	p.logger.DebugContext(ctx, "document processed",
		"document_id", doc.ID,
		"spans_detected", detected,
		"spans_redacted", replaced,
		"duration", result.Duration,
	)
	return result, nil
}

// ============================================================================
// Stage runners
// ============================================================================

func (p *Pipeline) runPreProcess(ctx context.Context, doc *plugin.Document) (*plugin.Document, error) {
	var out *plugin.Document
	var err error
	p.runStage(ctx, "preProcess", func(ctx context.Context) {
		out, err = p.deps.Plugins.RunPreProcess(ctx, doc)
	})
	return out, err
}

func (p *Pipeline) runShortCircuit(ctx context.Context, doc *plugin.Document) (*plugin.Result, string, error) {
	var out *plugin.Result
	var by string
	var err error
	p.runStage(ctx, "canShortCircuit", func(ctx context.Context) {
		out, by, err = p.deps.Plugins.RunCanShortCircuit(ctx, doc)
	})
	return out, by, err
}

func (p *Pipeline) runDetect(ctx context.Context, doc *plugin.Document) ([]span.Span, error) {
	var out []span.Span
	var err error
	p.runStage(ctx, "detect", func(ctx context.Context) {
		out, err = p.deps.Detector.DetectSpans(ctx, doc)
	})
	return out, err
}

func (p *Pipeline) runSpanHooks(
	ctx context.Context,
	stage string,
	spans []span.Span,
	doc *plugin.Document,
	run func(context.Context, []span.Span, *plugin.Document) ([]span.Span, error),
) ([]span.Span, error) {
	var out []span.Span
	var err error
	p.runStage(ctx, stage, func(ctx context.Context) {
		out, err = run(ctx, spans, doc)
	})
	return out, err
}

func (p *Pipeline) runRedact(ctx context.Context, doc *plugin.Document, spans []span.Span) (string, int, error) {
	var text string
	var replaced int
	var err error
	p.runStage(ctx, "redact", func(ctx context.Context) {
		text, replaced, err = p.deps.Redactor.Redact(ctx, doc.Text, spans)
	})
	return text, replaced, err
}

func (p *Pipeline) runPostRedaction(ctx context.Context, result *plugin.Result) (*plugin.Result, error) {
	var out *plugin.Result
	var err error
	p.runStage(ctx, "postRedaction", func(ctx context.Context) {
		out, err = p.deps.Plugins.RunPostRedaction(ctx, result)
	})
	return out, err
}

// runStage times a stage, opens a child span for it, and records its
// duration histogram.
func (p *Pipeline) runStage(ctx context.Context, stage string, fn func(context.Context)) {
	start := time.Now()
	sctx, sp := p.startSpan(ctx, "pipeline."+stage)
	sp.stage(stage)
	fn(sctx)
	sp.end()
	if c := p.deps.Collector; c != nil {
		c.RecordStage(stage, time.Since(start))
	}
}

func (p *Pipeline) fail(ctx context.Context, procSpan stageSpan, doc *plugin.Document, start time.Time, err error) (*plugin.Result, error) {
	procSpan.fail(err)
	procSpan.outcome(OutcomeError, 0, 0)
	p.record(ctx, doc, nil, OutcomeError, 0, 0, time.Since(start))
	p.logger.ErrorContext(ctx, "document processing failed",
		"document_id", doc.ID,
		"error", err,
	)
	return nil, err
}

// record emits the per-pass metrics and audit record.
func (p *Pipeline) record(ctx context.Context, doc *plugin.Document, result *plugin.Result, outcome string, detected, replaced int, duration time.Duration) {
	if c := p.deps.Collector; c != nil {
		c.RecordDocument(outcome, duration, detected, replaced)
	}
	if p.deps.Audit == nil {
		return
	}
	rec := &audit.Record{
		ID:             uuid.New(),
		Timestamp:      time.Now().UTC(),
		DocumentID:     doc.ID,
		Outcome:        outcome,
		SpanCount:      detected,
		RedactedCount:  replaced,
		ShortCircuited: result != nil && result.ShortCircuited,
		Duration:       duration,
	}
	if err := p.deps.Audit.Record(ctx, rec); err != nil {
		p.logger.WarnContext(ctx, "audit record failed",
			"document_id", doc.ID,
			"error", err,
		)
	}
}

// ============================================================================
// Helpers
// ============================================================================

func toPointers(spans []span.Span) []*span.Span {
	out := make([]*span.Span, len(spans))
	for i := range spans {
		out[i] = &spans[i]
	}
	return out
}

func fromPointers(spans []*span.Span) []span.Span {
	out := make([]span.Span, 0, len(spans))
	for _, s := range spans {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}
