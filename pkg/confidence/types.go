package confidence

import (
	"fmt"
	"regexp"

	"umbra-hq/umbra/pkg/span"
)

// Action determines how a matching modifier changes a span's confidence.
type Action string

const (
	// ActionOverride replaces the confidence with Value (soft-clamped).
	ActionOverride Action = "OVERRIDE"

	// ActionDelta shifts the confidence by Value in log-odds space.
	ActionDelta Action = "DELTA"

	// ActionMultiply scales the confidence by Value (soft-clamped).
	ActionMultiply Action = "MULTIPLY"
)

// ConditionType determines what evidence a modifier inspects.
type ConditionType string

const (
	// ConditionTextBefore matches a literal in the text before the span.
	ConditionTextBefore ConditionType = "text_before"

	// ConditionTextAfter matches a literal in the text after the span.
	ConditionTextAfter ConditionType = "text_after"

	// ConditionTextSurrounding matches a literal anywhere around the span.
	ConditionTextSurrounding ConditionType = "text_surrounding"

	// ConditionRegexSurrounding matches a regex over the surrounding text.
	ConditionRegexSurrounding ConditionType = "regex_surrounding"

	// ConditionWindowKeyword matches when any keyword appears in the
	// span's context window (two-tier membership test).
	ConditionWindowKeyword ConditionType = "window_keyword"

	// ConditionWindowPattern matches a regex over the joined window.
	ConditionWindowPattern ConditionType = "window_pattern"
)

// Modifier is a single data-driven confidence adjustment rule.
type Modifier struct {
	// Name identifies the modifier in logs and metrics.
	Name string `yaml:"name"`

	// FilterTypes restricts which span types the modifier applies to.
	// Empty means all types.
	FilterTypes []span.FilterType `yaml:"filter_types"`

	// ConditionType selects the evidence the modifier inspects.
	ConditionType ConditionType `yaml:"condition_type"`

	// ConditionValue is the literal or regex source, depending on
	// ConditionType. Unused for window_keyword conditions.
	ConditionValue string `yaml:"condition_value"`

	// Keywords is the keyword list for window_keyword conditions.
	Keywords []string `yaml:"keywords"`

	// Action is what to do with the confidence when the condition holds.
	Action Action `yaml:"action"`

	// Value parameterizes the action: the override target, the log-odds
	// delta, or the multiplier.
	Value float64 `yaml:"value"`

	// Disabled turns the modifier off without removing it.
	Disabled bool `yaml:"disabled"`

	// pattern is the compiled regex for regex conditions, built once
	// during registry compilation.
	pattern *regexp.Regexp
}

// AppliesTo reports whether the modifier is applicable to the filter type.
func (m *Modifier) AppliesTo(ft span.FilterType) bool {
	if len(m.FilterTypes) == 0 {
		return true
	}
	for _, t := range m.FilterTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// IsBoost reports whether applying the modifier at the given confidence
// would raise it. Used by the ceiling/floor fast paths: above the ceiling
// only penalties are evaluated, below the floor only boosts.
func (m *Modifier) IsBoost(current float64) bool {
	switch m.Action {
	case ActionOverride:
		return m.Value > current
	case ActionDelta:
		return m.Value > 0
	case ActionMultiply:
		return m.Value > 1
	}
	return false
}

// compile builds the regex for regex-based conditions and validates the
// modifier's shape.
func (m *Modifier) compile() error {
	switch m.ConditionType {
	case ConditionRegexSurrounding, ConditionWindowPattern:
		p, err := regexp.Compile(m.ConditionValue)
		if err != nil {
			return fmt.Errorf("modifier %q: bad pattern: %w", m.Name, err)
		}
		m.pattern = p
	case ConditionWindowKeyword:
		if len(m.Keywords) == 0 {
			return fmt.Errorf("modifier %q: window_keyword condition requires keywords", m.Name)
		}
	case ConditionTextBefore, ConditionTextAfter, ConditionTextSurrounding:
		if m.ConditionValue == "" {
			return fmt.Errorf("modifier %q: empty condition value", m.Name)
		}
	default:
		return fmt.Errorf("modifier %q: unknown condition type %q", m.Name, m.ConditionType)
	}

	switch m.Action {
	case ActionOverride, ActionDelta, ActionMultiply:
	default:
		return fmt.Errorf("modifier %q: unknown action %q", m.Name, m.Action)
	}
	return nil
}
