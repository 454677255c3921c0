package disambiguation

import "umbra-hq/umbra/pkg/span"

// Decision is a strategy's verdict for one ambiguous group.
type Decision struct {
	// WinnerIndex is the index of the surviving candidate in the group.
	WinnerIndex int

	// Score is the winner's score under the strategy's formula.
	Score float64

	// Fallback reports that no candidate cleared the strategy's
	// threshold and the winner was chosen by confidence-then-priority
	// ordering instead.
	Fallback bool
}

// Strategy picks one winner among spans occupying an identical character
// range. Implementations must be deterministic for a fixed cache state
// and input order.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Resolve picks the winner for an ambiguous group. The group always
	// has at least two members.
	Resolve(group []*span.Span) Decision
}

// lessPreferred reports whether a loses a tie against b: higher
// confidence wins, then higher declared priority.
func lessPreferred(a, b *span.Span) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	return a.Priority < b.Priority
}
