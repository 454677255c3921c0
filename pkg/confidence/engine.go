package confidence

import (
	"log/slog"
	"strings"
	"sync"

	"umbra-hq/umbra/pkg/span"
)

// EngineConfig configures the confidence modifier engine.
type EngineConfig struct {
	// Ceiling is the confidence above which only penalties are evaluated.
	// Default: 0.98
	Ceiling float64 `yaml:"ceiling"`

	// Floor is the confidence below which only boosts are evaluated.
	// Default: 0.02
	Floor float64 `yaml:"floor"`

	// Proximity is how many characters before and after a span count as
	// its surrounding text for text/regex conditions.
	// Default: 40
	Proximity int `yaml:"proximity"`
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Ceiling:   0.98,
		Floor:     0.02,
		Proximity: 40,
	}
}

// Engine applies registered modifiers to spans. It is safe for concurrent
// use; the registry pointer is swapped atomically under the mutex on
// reload.
type Engine struct {
	config EngineConfig

	mu       sync.RWMutex
	registry *Registry

	logger *slog.Logger
}

// NewEngine creates an engine over the given registry. A nil registry
// gets the built-in default set; a nil logger gets slog.Default().
func NewEngine(cfg EngineConfig, registry *Registry, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Ceiling == 0 {
		cfg.Ceiling = 0.98
	}
	if cfg.Floor == 0 {
		cfg.Floor = 0.02
	}
	if cfg.Proximity == 0 {
		cfg.Proximity = 40
	}
	return &Engine{
		config:   cfg,
		registry: registry,
		logger:   logger.With("component", "confidence.engine"),
	}
}

// Registry returns the active registry.
func (e *Engine) Registry() *Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

// SetRegistry swaps the active registry. Used by the rule-file watcher.
func (e *Engine) SetRegistry(r *Registry) {
	if r == nil {
		return
	}
	e.mu.Lock()
	e.registry = r
	e.mu.Unlock()
	e.logger.Info("modifier registry swapped",
		"modifiers", len(r.Modifiers()),
		"keywords", r.KeywordCount(),
	)
}

// ApplyModifiers evaluates every applicable modifier against the span and
// returns the adjusted confidence. The span's Confidence field is updated
// in place. Confidence never leaves [0,1].
func (e *Engine) ApplyModifiers(text string, sp *span.Span) float64 {
	registry := e.Registry()
	hits := registry.WindowHits(sp.Window)
	return e.applyWithHits(registry, text, sp, hits)
}

// ApplyModifiersToAll adjusts every span in the batch. Window-keyword hits
// are precomputed per span through the two-tier membership test before any
// modifier is evaluated.
func (e *Engine) ApplyModifiersToAll(text string, spans []*span.Span) {
	registry := e.Registry()

	// Precompute keyword hits per span first so the per-modifier loop
	// only consults set membership.
	allHits := make([]map[string]struct{}, len(spans))
	for i, sp := range spans {
		allHits[i] = registry.WindowHits(sp.Window)
	}

	for i, sp := range spans {
		e.applyWithHits(registry, text, sp, allHits[i])
	}
}

func (e *Engine) applyWithHits(registry *Registry, text string, sp *span.Span, hits map[string]struct{}) float64 {
	conf := sp.Confidence

	for _, m := range registry.Modifiers() {
		if m.Disabled || !m.AppliesTo(sp.FilterType) {
			continue
		}

		// Ceiling/floor fast paths: saturated spans only move back
		// toward the middle.
		boost := m.IsBoost(conf)
		if conf >= e.config.Ceiling && boost {
			continue
		}
		if conf <= e.config.Floor && !boost {
			continue
		}

		if !e.conditionHolds(m, text, sp, hits) {
			continue
		}

		next := apply(m.Action, conf, m.Value)
		e.logger.Debug("modifier applied",
			"modifier", m.Name,
			"filter_type", sp.FilterType,
			"action", m.Action,
			"before", conf,
			"after", next,
		)
		conf = next
	}

	sp.Confidence = conf
	return conf
}

// conditionHolds evaluates a single modifier condition against the span's
// surroundings. Keyword conditions consult the precomputed hit set; the
// other condition types inspect the text directly.
func (e *Engine) conditionHolds(m *Modifier, text string, sp *span.Span, hits map[string]struct{}) bool {
	switch m.ConditionType {
	case ConditionWindowKeyword:
		for _, kw := range m.Keywords {
			if _, ok := hits[strings.ToLower(kw)]; ok {
				return true
			}
		}
		return false

	case ConditionWindowPattern:
		return m.pattern.MatchString(strings.Join(sp.Window, " "))

	case ConditionTextBefore:
		before, _ := e.surroundings(text, sp)
		return containsFold(before, m.ConditionValue)

	case ConditionTextAfter:
		_, after := e.surroundings(text, sp)
		return containsFold(after, m.ConditionValue)

	case ConditionTextSurrounding:
		before, after := e.surroundings(text, sp)
		return containsFold(before, m.ConditionValue) || containsFold(after, m.ConditionValue)

	case ConditionRegexSurrounding:
		before, after := e.surroundings(text, sp)
		return m.pattern.MatchString(before) || m.pattern.MatchString(after)
	}
	return false
}

// surroundings returns the text within Proximity characters before and
// after the span, clamped to the document bounds.
func (e *Engine) surroundings(text string, sp *span.Span) (before, after string) {
	start := sp.CharacterStart
	end := sp.CharacterEnd
	if start > len(text) {
		start = len(text)
	}
	if end > len(text) {
		end = len(text)
	}

	lo := start - e.config.Proximity
	if lo < 0 {
		lo = 0
	}
	hi := end + e.config.Proximity
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:start], text[end:hi]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
