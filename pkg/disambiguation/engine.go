package disambiguation

import (
	"context"
	"log/slog"
	"sort"

	"umbra-hq/umbra/pkg/span"
)

// Engine groups spans by character range and resolves each ambiguous
// group to a single winner through the configured strategy.
type Engine struct {
	strategy Strategy

	// vector is always present, whatever strategy is active: every
	// observed span is cached for future lookups.
	vector *VectorStrategy

	logger *slog.Logger
}

// NewEngine creates a disambiguation engine. A nil strategy defaults to
// the hash-vector strategy; the vector strategy (and its cache) backs
// observation recording in every configuration.
func NewEngine(strategy Strategy, vector *VectorStrategy, logger *slog.Logger) *Engine {
	if vector == nil {
		vector = NewVectorStrategy(DefaultVectorConfig(), nil, nil)
	}
	if strategy == nil {
		strategy = vector
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		strategy: strategy,
		vector:   vector,
		logger:   logger.With("component", "disambiguation.engine"),
	}
}

// Strategy returns the active strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Cache returns the shared observation cache.
func (e *Engine) Cache() *ObservationCache { return e.vector.Cache() }

// DisambiguateAll resolves every ambiguous range in the span list and
// returns the survivors in document order. Unambiguous spans pass through
// untouched. The operation is deterministic for a fixed cache state and
// idempotent: re-running it on its own output changes nothing.
func (e *Engine) DisambiguateAll(ctx context.Context, spans []*span.Span) []*span.Span {
	if len(spans) == 0 {
		return spans
	}

	if es, ok := e.strategy.(*EmbeddingStrategy); ok {
		es.WithContext(ctx)
	}

	// Partition by exact character range, keeping first-seen order of
	// ranges so the result is deterministic for a fixed input order.
	groups := make(map[span.Range][]*span.Span)
	var order []span.Range
	for _, sp := range spans {
		r := sp.Range()
		if _, seen := groups[r]; !seen {
			order = append(order, r)
		}
		groups[r] = append(groups[r], sp)
	}

	survivors := make([]*span.Span, 0, len(order))
	for _, r := range order {
		group := groups[r]

		if len(group) == 1 {
			e.vector.Observe(group[0])
			survivors = append(survivors, group[0])
			continue
		}

		decision := e.strategy.Resolve(group)
		winner := group[decision.WinnerIndex]

		score := decision.Score
		winner.DisambiguationScore = &score
		winner.AmbiguousWith = winner.AmbiguousWith[:0]
		for i, sp := range group {
			if i != decision.WinnerIndex {
				winner.AmbiguousWith = append(winner.AmbiguousWith, sp.FilterType)
			}
		}

		e.logger.Debug("ambiguous range resolved",
			"range_start", r.Start,
			"range_end", r.End,
			"winner", winner.FilterType,
			"score", score,
			"strategy", e.strategy.Name(),
			"fallback", decision.Fallback,
			"rejected", len(winner.AmbiguousWith),
		)

		// Resolution sees only prior history; the group's own spans are
		// cached for future lookups once the winner is chosen.
		for _, sp := range group {
			e.vector.Observe(sp)
		}

		survivors = append(survivors, winner)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].CharacterStart != survivors[j].CharacterStart {
			return survivors[i].CharacterStart < survivors[j].CharacterStart
		}
		return survivors[i].CharacterEnd < survivors[j].CharacterEnd
	})
	return survivors
}
