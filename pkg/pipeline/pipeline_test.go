package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/confidence"
	"umbra-hq/umbra/pkg/disambiguation"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/span"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

// stubDetector returns a fixed span set, or an error.
type stubDetector struct {
	spans []span.Span
	err   error
}

func (d *stubDetector) DetectSpans(ctx context.Context, doc *plugin.Document) ([]span.Span, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make([]span.Span, len(d.spans))
	copy(out, d.spans)
	return out, nil
}

// captureSink records every audit record it receives.
type captureSink struct {
	records []*audit.Record
	err     error
}

func (s *captureSink) Record(ctx context.Context, rec *audit.Record) error {
	s.records = append(s.records, rec)
	return s.err
}

// gatePlugin short-circuits documents containing a marker.
type gatePlugin struct{}

func (p *gatePlugin) Name() string { return "gate" }

func (p *gatePlugin) CanShortCircuit(ctx context.Context, doc *plugin.Document) (*plugin.Result, error) {
	if strings.Contains(doc.Text, "skip-me") {
		return &plugin.Result{
			DocumentID:     doc.ID,
			OriginalText:   doc.Text,
			RedactedText:   doc.Text,
			ShortCircuited: true,
		}, nil
	}
	return nil, nil
}

func newTestManager(t *testing.T) *plugin.Manager {
	t.Helper()
	return plugin.NewManager(plugin.ManagerConfig{}, testLogger())
}

func enablePlugin(t *testing.T, m *plugin.Manager, name string, p plugin.Plugin) {
	t.Helper()
	m.RegisterFactory(name, func(config map[string]any) (plugin.Plugin, error) { return p, nil })
	manifest := &plugin.Manifest{
		Name:     name,
		Version:  "1.0.0",
		Type:     plugin.TypeHook,
		Main:     name,
		Priority: intPtr(10),
	}
	if err := m.AddManifest(manifest); err != nil {
		t.Fatalf("AddManifest(%s): %v", name, err)
	}
	if err := m.Load(context.Background(), name); err != nil {
		t.Fatalf("Load(%s): %v", name, err)
	}
	if err := m.Enable(name); err != nil {
		t.Fatalf("Enable(%s): %v", name, err)
	}
}

func newTestPipeline(t *testing.T, detector Detector, manager *plugin.Manager, sink AuditSink) *Pipeline {
	t.Helper()

	registry, err := confidence.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	pipe, err := New(Config{}, Deps{
		Detector:       detector,
		Redactor:       NewTokenRedactor(),
		Plugins:        manager,
		Confidence:     confidence.NewEngine(confidence.DefaultEngineConfig(), registry, testLogger()),
		Disambiguation: disambiguation.NewEngine(disambiguation.NewKeywordStrategy(disambiguation.DefaultKeywordConfig(), nil), nil, testLogger()),
		Audit:          sink,
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return pipe
}

// ============================================================================
// Process
// ============================================================================

func TestPipelineProcess(t *testing.T) {
	text := "SSN 123-45-6789 on file"
	detector := &stubDetector{spans: []span.Span{{
		FilterType:     span.FilterSSN,
		CharacterStart: 4,
		CharacterEnd:   15,
		Text:           "123-45-6789",
		Confidence:     0.9,
	}}}

	pipe := newTestPipeline(t, detector, newTestManager(t), nil)

	result, err := pipe.Process(context.Background(), &plugin.Document{Text: text})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if result.DocumentID == "" {
		t.Error("Process() should assign a document ID")
	}
	if result.OriginalText != text {
		t.Errorf("OriginalText = %q, want %q", result.OriginalText, text)
	}
	if want := "SSN {{SSN}} on file"; result.RedactedText != want {
		t.Errorf("RedactedText = %q, want %q", result.RedactedText, want)
	}
	if len(result.Spans) != 1 {
		t.Errorf("len(Spans) = %d, want 1", len(result.Spans))
	}
	if result.Duration <= 0 {
		t.Error("Duration should be positive")
	}
}

func TestPipelineKeepsDocumentID(t *testing.T) {
	pipe := newTestPipeline(t, &stubDetector{}, newTestManager(t), nil)

	result, err := pipe.Process(context.Background(), &plugin.Document{ID: "doc-7", Text: "clean text"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.DocumentID != "doc-7" {
		t.Errorf("DocumentID = %q, want doc-7", result.DocumentID)
	}
	if result.RedactedText != "clean text" {
		t.Errorf("RedactedText = %q, want unchanged text", result.RedactedText)
	}
}

func TestPipelineNilDocument(t *testing.T) {
	pipe := newTestPipeline(t, &stubDetector{}, newTestManager(t), nil)

	if _, err := pipe.Process(context.Background(), nil); err == nil {
		t.Fatal("Process(nil) should fail")
	}
}

func TestPipelineShortCircuit(t *testing.T) {
	manager := newTestManager(t)
	enablePlugin(t, manager, "gate", &gatePlugin{})

	sink := &captureSink{}
	pipe := newTestPipeline(t, &stubDetector{err: errors.New("detector must not run")}, manager, sink)

	result, err := pipe.Process(context.Background(), &plugin.Document{Text: "please skip-me"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !result.ShortCircuited {
		t.Error("ShortCircuited = false, want true")
	}
	if result.RedactedText != "please skip-me" {
		t.Errorf("RedactedText = %q, want untouched text", result.RedactedText)
	}

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	if sink.records[0].Outcome != OutcomeShortCircuited {
		t.Errorf("audit outcome = %q, want %q", sink.records[0].Outcome, OutcomeShortCircuited)
	}
}

func TestPipelineDetectorError(t *testing.T) {
	sink := &captureSink{}
	pipe := newTestPipeline(t, &stubDetector{err: errors.New("model unavailable")}, newTestManager(t), sink)

	_, err := pipe.Process(context.Background(), &plugin.Document{Text: "some text"})
	if err == nil {
		t.Fatal("Process() should propagate detector failure")
	}
	if !strings.Contains(err.Error(), "detect") {
		t.Errorf("error = %v, want detect stage named", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	if sink.records[0].Outcome != OutcomeError {
		t.Errorf("audit outcome = %q, want %q", sink.records[0].Outcome, OutcomeError)
	}
}

func TestPipelineAuditEmission(t *testing.T) {
	detector := &stubDetector{spans: []span.Span{{
		FilterType:     span.FilterEmail,
		CharacterStart: 0,
		CharacterEnd:   15,
		Text:           "jan@example.com",
		Confidence:     0.8,
	}}}

	sink := &captureSink{}
	pipe := newTestPipeline(t, detector, newTestManager(t), sink)

	result, err := pipe.Process(context.Background(), &plugin.Document{Text: "jan@example.com wrote in"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.DocumentID != result.DocumentID {
		t.Errorf("audit DocumentID = %q, want %q", rec.DocumentID, result.DocumentID)
	}
	if rec.Outcome != OutcomeRedacted {
		t.Errorf("audit outcome = %q, want %q", rec.Outcome, OutcomeRedacted)
	}
	if rec.SpanCount != 1 || rec.RedactedCount != 1 {
		t.Errorf("audit counts = %d/%d, want 1/1", rec.SpanCount, rec.RedactedCount)
	}
	if rec.Duration <= 0 {
		t.Error("audit duration should be positive")
	}
}

func TestPipelineAuditFailureDoesNotFailPass(t *testing.T) {
	sink := &captureSink{err: errors.New("audit store down")}
	pipe := newTestPipeline(t, &stubDetector{}, newTestManager(t), sink)

	if _, err := pipe.Process(context.Background(), &plugin.Document{Text: "clean"}); err != nil {
		t.Fatalf("Process() error = %v, audit failure must not fail the pass", err)
	}
}

func TestNewValidatesDeps(t *testing.T) {
	registry, err := confidence.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	full := Deps{
		Detector:       &stubDetector{},
		Redactor:       NewTokenRedactor(),
		Plugins:        newTestManager(t),
		Confidence:     confidence.NewEngine(confidence.DefaultEngineConfig(), registry, testLogger()),
		Disambiguation: disambiguation.NewEngine(disambiguation.NewKeywordStrategy(disambiguation.DefaultKeywordConfig(), nil), nil, testLogger()),
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"missing detector", func(d *Deps) { d.Detector = nil }},
		{"missing redactor", func(d *Deps) { d.Redactor = nil }},
		{"missing plugin manager", func(d *Deps) { d.Plugins = nil }},
		{"missing confidence engine", func(d *Deps) { d.Confidence = nil }},
		{"missing disambiguation engine", func(d *Deps) { d.Disambiguation = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.mutate(&deps)
			if _, err := New(Config{}, deps, testLogger()); err == nil {
				t.Errorf("New() should fail with %s", tt.name)
			}
		})
	}

	if _, err := New(Config{}, full, testLogger()); err != nil {
		t.Errorf("New() with full deps error = %v", err)
	}
}
