package disambiguation

import (
	"sync"

	"umbra-hq/umbra/pkg/span"
)

// defaultMaxPerKey caps the number of observations kept per window key.
const defaultMaxPerKey = 100

// Observation is a single cached (filter type, vector) pair recorded for a
// normalized window.
type Observation struct {
	FilterType span.FilterType
	Vector     []float64
}

// ObservationCache stores disambiguation history keyed by normalized
// window text. Each key keeps at most maxPerKey observations; the oldest
// is evicted first. Safe for concurrent use.
type ObservationCache struct {
	mu        sync.RWMutex
	entries   map[string][]Observation
	maxPerKey int
}

// NewObservationCache creates a cache. maxPerKey <= 0 uses the default
// cap of 100 observations per key.
func NewObservationCache(maxPerKey int) *ObservationCache {
	if maxPerKey <= 0 {
		maxPerKey = defaultMaxPerKey
	}
	return &ObservationCache{
		entries:   make(map[string][]Observation),
		maxPerKey: maxPerKey,
	}
}

// Add records an observation under the given window key, evicting the
// oldest entry once the per-key cap is reached.
func (c *ObservationCache) Add(key string, ft span.FilterType, vector []float64) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	obs := c.entries[key]
	if len(obs) >= c.maxPerKey {
		obs = obs[1:]
	}
	c.entries[key] = append(obs, Observation{FilterType: ft, Vector: vector})
}

// VectorsFor returns the cached vectors recorded for the window key and
// filter type, in insertion order.
func (c *ObservationCache) VectorsFor(key string, ft span.FilterType) [][]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out [][]float64
	for _, o := range c.entries[key] {
		if o.FilterType == ft {
			out = append(out, o.Vector)
		}
	}
	return out
}

// Keys returns the number of distinct window keys in the cache.
func (c *ObservationCache) Keys() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Size returns the total number of cached observations.
func (c *ObservationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, obs := range c.entries {
		n += len(obs)
	}
	return n
}

// Range visits every cached observation. Used by persistent stores to
// snapshot the cache; the callback must not mutate the vector.
func (c *ObservationCache) Range(fn func(key string, o Observation)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for key, obs := range c.entries {
		for _, o := range obs {
			fn(key, o)
		}
	}
}
