package span

import (
	"errors"
	"fmt"
	"strings"
)

// Common validation errors that can be checked with errors.Is().
var (
	// ErrInvalidRange is returned when a span's character range is empty or inverted.
	ErrInvalidRange = errors.New("invalid span range")

	// ErrConfidenceOutOfRange is returned when confidence is outside [0,1].
	ErrConfidenceOutOfRange = errors.New("confidence out of range")

	// ErrEmptyWindow is returned when a span arrives without context tokens.
	ErrEmptyWindow = errors.New("empty context window")
)

// Span represents a single detected candidate sensitive-data occurrence.
//
// CharacterStart/CharacterEnd are half-open offsets into the source text:
// the matched substring is text[CharacterStart:CharacterEnd].
type Span struct {
	// FilterType is the sensitive-data category assigned by the detector.
	FilterType FilterType `json:"filterType"`

	// CharacterStart is the inclusive start offset into the source text.
	CharacterStart int `json:"characterStart"`

	// CharacterEnd is the exclusive end offset into the source text.
	CharacterEnd int `json:"characterEnd"`

	// Text is the matched substring.
	Text string `json:"text"`

	// Confidence is the detector's score for this span. It remains in
	// [0,1] after every processing step.
	Confidence float64 `json:"confidence"`

	// Window holds the ordered context tokens surrounding the span.
	Window []string `json:"window"`

	// Priority is the tie-break weight. Zero means "defaulted from the
	// filter type's specificity" during validation.
	Priority int `json:"priority"`

	// DisambiguationScore is set once the disambiguation engine picks
	// this span as the winner for its range. Nil until then.
	DisambiguationScore *float64 `json:"disambiguationScore,omitempty"`

	// AmbiguousWith records the filter types this span beat during
	// disambiguation. Empty for spans that were never ambiguous.
	AmbiguousWith []FilterType `json:"ambiguousWith,omitempty"`
}

// Range identifies the exact character range a span occupies. Spans with
// equal ranges but different filter types compete during disambiguation.
type Range struct {
	Start int
	End   int
}

// Range returns the span's character range key.
func (s *Span) Range() Range {
	return Range{Start: s.CharacterStart, End: s.CharacterEnd}
}

// Validate checks the span input contract for spans entering the core:
// a sane half-open range, confidence in [0,1], and a populated window.
// Priority is defaulted from the filter type's specificity when absent.
func (s *Span) Validate() error {
	if s.CharacterStart < 0 || s.CharacterEnd <= s.CharacterStart {
		return fmt.Errorf("%w: [%d,%d)", ErrInvalidRange, s.CharacterStart, s.CharacterEnd)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: %g", ErrConfidenceOutOfRange, s.Confidence)
	}
	if len(s.Window) == 0 {
		return ErrEmptyWindow
	}
	if s.Priority == 0 {
		s.Priority = s.FilterType.Specificity()
	}
	return nil
}

// NormalizedWindow returns the span's context window lowercased and joined
// with single spaces. Used as the cache key for disambiguation history.
func (s *Span) NormalizedWindow() string {
	if len(s.Window) == 0 {
		return ""
	}
	parts := make([]string, len(s.Window))
	for i, w := range s.Window {
		parts[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return strings.Join(parts, " ")
}

// Clone returns a deep copy of the span.
func (s *Span) Clone() *Span {
	c := *s
	if s.Window != nil {
		c.Window = append([]string(nil), s.Window...)
	}
	if s.AmbiguousWith != nil {
		c.AmbiguousWith = append([]FilterType(nil), s.AmbiguousWith...)
	}
	if s.DisambiguationScore != nil {
		v := *s.DisambiguationScore
		c.DisambiguationScore = &v
	}
	return &c
}

// String returns a compact description for logs. The matched text is not
// included; spans carry PHI and must never leak into log output.
func (s *Span) String() string {
	return fmt.Sprintf("%s[%d,%d) conf=%.3f", s.FilterType, s.CharacterStart, s.CharacterEnd, s.Confidence)
}
