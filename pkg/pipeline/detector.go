package pipeline

import (
	"context"
	"fmt"

	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/span"
)

// AttachSpans stores caller-provided candidate spans on a document so a
// CandidateDetector picks them up. Span detection itself happens upstream;
// callers hand the engine its candidates this way.
func AttachSpans(doc *plugin.Document, spans []span.Span) {
	doc.CandidateSpans = spans
}

// AttachedSpans returns the candidate spans on a document, if any.
func AttachedSpans(doc *plugin.Document) []span.Span {
	return doc.CandidateSpans
}

// DefaultWindowSize is the per-side context window used when a candidate
// span arrives without one.
const DefaultWindowSize = 5

// CandidateDetector satisfies Detector by combining caller-attached spans
// with spans from filter plugins. Spans missing their text or context
// window get both filled in from the document; every span is validated
// before it enters the pipeline, which also defaults missing priorities.
type CandidateDetector struct {
	plugins    *plugin.Manager
	windowSize int
}

// NewCandidateDetector creates a CandidateDetector. The manager is
// optional; without one only attached spans are returned.
func NewCandidateDetector(plugins *plugin.Manager) *CandidateDetector {
	return &CandidateDetector{plugins: plugins, windowSize: DefaultWindowSize}
}

// DetectSpans returns the document's candidate spans.
func (d *CandidateDetector) DetectSpans(ctx context.Context, doc *plugin.Document) ([]span.Span, error) {
	out := make([]span.Span, 0)
	out = append(out, AttachedSpans(doc)...)

	if d.plugins != nil {
		for name, det := range d.plugins.Detectors() {
			spans, err := det.DetectSpans(ctx, doc)
			if err != nil {
				return nil, fmt.Errorf("detector plugin %s: %w", name, err)
			}
			out = append(out, spans...)
		}
	}

	runes := []rune(doc.Text)
	for i := range out {
		s := &out[i]
		if s.CharacterStart < 0 || s.CharacterEnd > len(runes) || s.CharacterStart >= s.CharacterEnd {
			return nil, fmt.Errorf("candidate span %d (%s): range [%d,%d) outside text of length %d",
				i, s.FilterType, s.CharacterStart, s.CharacterEnd, len(runes))
		}
		if s.Text == "" {
			s.Text = string(runes[s.CharacterStart:s.CharacterEnd])
		}
		if len(s.Window) == 0 {
			s.Window = span.ContextWindow(doc.Text, s.CharacterStart, s.CharacterEnd, d.windowSize)
		}
		if len(s.Window) == 0 {
			// The span is the whole document; its own text is all the
			// context there is.
			s.Window = []string{s.Text}
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("candidate span %d (%s): %w", i, s.FilterType, err)
		}
	}
	return out, nil
}
