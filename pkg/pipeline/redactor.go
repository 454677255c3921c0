package pipeline

import (
	"context"
	"fmt"
	"sort"

	"umbra-hq/umbra/pkg/span"
)

// TokenRedactor replaces spans with category tokens like "{{SSN}}".
// Spans are applied right to left so earlier offsets stay valid while
// later text shifts.
type TokenRedactor struct {
	// Open and Close delimit the token. Defaults: "{{" and "}}".
	Open  string
	Close string
}

// NewTokenRedactor returns a TokenRedactor with the default delimiters.
func NewTokenRedactor() *TokenRedactor {
	return &TokenRedactor{Open: "{{", Close: "}}"}
}

// Redact replaces each span's text with its filter-type token. Spans with
// offsets outside the text are rejected; spans overlapping an already
// replaced region are skipped. Returns the rewritten text and the number
// of spans replaced.
func (r *TokenRedactor) Redact(ctx context.Context, text string, spans []span.Span) (string, int, error) {
	if len(spans) == 0 {
		return text, 0, nil
	}

	open, close := r.Open, r.Close
	if open == "" {
		open = "{{"
	}
	if close == "" {
		close = "}}"
	}

	ordered := make([]span.Span, len(spans))
	copy(ordered, spans)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CharacterStart > ordered[j].CharacterStart
	})

	runes := []rune(text)
	replaced := 0
	// lastStart is the left edge of the most recent replacement. Working
	// right to left, any span ending past it overlaps a replaced region.
	lastStart := len(runes) + 1

	for _, s := range ordered {
		if s.CharacterStart < 0 || s.CharacterEnd > len(runes) || s.CharacterStart >= s.CharacterEnd {
			return "", 0, fmt.Errorf("span %s out of range [%d, %d) for text of length %d",
				s.FilterType, s.CharacterStart, s.CharacterEnd, len(runes))
		}
		if s.CharacterEnd > lastStart {
			continue
		}

		token := []rune(open + string(s.FilterType) + close)
		runes = append(runes[:s.CharacterStart], append(token, runes[s.CharacterEnd:]...)...)
		lastStart = s.CharacterStart
		replaced++
	}

	return string(runes), replaced, nil
}
