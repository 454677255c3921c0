package confidence

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomFalsePositiveRate is the target false-positive rate for the keyword
// prefilter. False positives only cost an extra exact-set lookup; false
// negatives are impossible.
const bloomFalsePositiveRate = 0.01

// Registry holds the active modifier set and the keyword index built from
// every window_keyword modifier. The index is rebuilt whenever a modifier
// is added, keeping the Bloom filter and the exact set in sync.
type Registry struct {
	modifiers []*Modifier

	// exact is the authoritative keyword set (lowercased).
	exact map[string]struct{}

	// filter is the probabilistic first tier: membership "no" is final,
	// membership "yes" must be confirmed against exact.
	filter *bloom.BloomFilter
}

// NewRegistry creates a registry seeded with the given modifiers.
// Modifiers with regex conditions are compiled up front; a bad modifier
// fails the whole construction rather than being silently dropped.
func NewRegistry(modifiers []*Modifier) (*Registry, error) {
	r := &Registry{}
	for _, m := range modifiers {
		if err := m.compile(); err != nil {
			return nil, err
		}
		r.modifiers = append(r.modifiers, m)
	}
	r.rebuildIndex()
	return r, nil
}

// NewDefaultRegistry creates a registry with the built-in modifier set.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultModifiers())
	if err != nil {
		// The built-in set is compiled in tests; a failure here is a bug.
		panic(fmt.Sprintf("confidence: default modifiers invalid: %v", err))
	}
	return r
}

// Add registers a modifier and rebuilds the keyword index.
func (r *Registry) Add(m *Modifier) error {
	if err := m.compile(); err != nil {
		return err
	}
	r.modifiers = append(r.modifiers, m)
	r.rebuildIndex()
	return nil
}

// Modifiers returns the registered modifiers in registration order.
func (r *Registry) Modifiers() []*Modifier {
	return r.modifiers
}

// KeywordCount returns the number of distinct indexed keywords.
func (r *Registry) KeywordCount() int {
	return len(r.exact)
}

// ContainsKeyword runs the two-tier membership test for a single
// lowercased token: Bloom reject first, exact confirm second.
func (r *Registry) ContainsKeyword(token string) bool {
	if r.filter == nil || len(r.exact) == 0 {
		return false
	}
	if !r.filter.TestString(token) {
		return false
	}
	_, ok := r.exact[token]
	return ok
}

// WindowHits returns the set of indexed keywords present in the window.
// Tokens are lowercased before testing.
func (r *Registry) WindowHits(window []string) map[string]struct{} {
	if len(r.exact) == 0 {
		return nil
	}
	var hits map[string]struct{}
	for _, tok := range window {
		lowered := strings.ToLower(tok)
		if r.ContainsKeyword(lowered) {
			if hits == nil {
				hits = make(map[string]struct{}, 4)
			}
			hits[lowered] = struct{}{}
		}
	}
	return hits
}

// rebuildIndex recomputes the exact keyword set and re-sizes the Bloom
// filter for the current keyword population.
func (r *Registry) rebuildIndex() {
	exact := make(map[string]struct{})
	for _, m := range r.modifiers {
		if m.ConditionType != ConditionWindowKeyword {
			continue
		}
		for _, kw := range m.Keywords {
			exact[strings.ToLower(kw)] = struct{}{}
		}
	}

	n := uint(len(exact))
	if n == 0 {
		n = 1
	}
	filter := bloom.NewWithEstimates(n, bloomFalsePositiveRate)
	for kw := range exact {
		filter.AddString(kw)
	}

	r.exact = exact
	r.filter = filter
}
