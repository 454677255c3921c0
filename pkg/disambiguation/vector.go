package disambiguation

import (
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"umbra-hq/umbra/pkg/span"
)

const (
	// defaultDimensions is the hash-vector length.
	defaultDimensions = 512

	// similarityWeight and confidenceWeight blend cached-history cosine
	// similarity with detector confidence for the hash-vector strategy.
	similarityWeight = 0.6
	confidenceWeight = 0.4

	// zeroMagnitude guards cosine similarity against degenerate vectors.
	zeroMagnitude = 1e-10
)

// WordHasher maps a token to a 32-bit hash. The algorithm is pluggable so
// hosts can swap in a different mixing function without touching the
// strategy.
type WordHasher func(word string) uint32

// DefaultWordHasher folds xxhash's 64-bit digest down to 32 bits.
func DefaultWordHasher(word string) uint32 {
	h := xxhash.Sum64String(word)
	return uint32(h ^ (h >> 32))
}

// stopWords are high-frequency tokens removed before vectorization when
// stop-word filtering is enabled.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {},
}

// VectorConfig configures the hash-vector strategy.
type VectorConfig struct {
	// Dimensions is the vector length. Default: 512
	Dimensions int `yaml:"dimensions"`

	// RemoveStopWords filters high-frequency tokens before hashing.
	// Default: true
	RemoveStopWords bool `yaml:"remove_stop_words"`
}

// DefaultVectorConfig returns the default vector strategy configuration.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Dimensions:      defaultDimensions,
		RemoveStopWords: true,
	}
}

// VectorStrategy scores ambiguous candidates by cosine similarity between
// the candidate's context vector and cached same-type observations.
type VectorStrategy struct {
	config VectorConfig
	hasher WordHasher
	cache  *ObservationCache
}

// NewVectorStrategy creates the hash-vector strategy. A nil hasher uses
// DefaultWordHasher; a nil cache gets a fresh one.
func NewVectorStrategy(cfg VectorConfig, hasher WordHasher, cache *ObservationCache) *VectorStrategy {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	if hasher == nil {
		hasher = DefaultWordHasher
	}
	if cache == nil {
		cache = NewObservationCache(0)
	}
	return &VectorStrategy{config: cfg, hasher: hasher, cache: cache}
}

// Name returns the strategy identifier.
func (v *VectorStrategy) Name() string { return "vector" }

// Cache exposes the observation cache shared across strategies.
func (v *VectorStrategy) Cache() *ObservationCache { return v.cache }

// Vectorize builds an L2-normalized hash vector for the window tokens.
func (v *VectorStrategy) Vectorize(window []string) []float64 {
	vec := make([]float64, v.config.Dimensions)
	for _, word := range window {
		w := strings.ToLower(strings.TrimSpace(word))
		if w == "" {
			continue
		}
		if v.config.RemoveStopWords {
			if _, stop := stopWords[w]; stop {
				continue
			}
		}
		dim := int(v.hasher(w)) % v.config.Dimensions
		vec[dim]++
	}
	normalize(vec)
	return vec
}

// Score blends cached-history similarity with detector confidence. A span
// with no same-type history scores its raw confidence.
func (v *VectorStrategy) Score(sp *span.Span) float64 {
	key := sp.NormalizedWindow()
	history := v.cache.VectorsFor(key, sp.FilterType)
	if len(history) == 0 {
		return sp.Confidence
	}

	candidate := v.Vectorize(sp.Window)
	var total float64
	for _, h := range history {
		total += CosineSimilarity(candidate, h)
	}
	avg := total / float64(len(history))

	return similarityWeight*avg + confidenceWeight*sp.Confidence
}

// Resolve picks the best-scoring candidate. Ties break by confidence,
// then declared priority.
func (v *VectorStrategy) Resolve(group []*span.Span) Decision {
	best := 0
	bestScore := math.Inf(-1)
	for i, sp := range group {
		score := v.Score(sp)
		if score > bestScore || (score == bestScore && lessPreferred(group[best], sp)) {
			best = i
			bestScore = score
		}
	}
	return Decision{WinnerIndex: best, Score: bestScore}
}

// Observe records the span's context vector in the cache.
func (v *VectorStrategy) Observe(sp *span.Span) {
	v.cache.Add(sp.NormalizedWindow(), sp.FilterType, v.Vectorize(sp.Window))
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// clamped to [-1,1]. Either vector with squared magnitude below 1e-10
// yields 0: degenerate vectors get a neutral score instead of a
// divide-by-near-zero artifact.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, x := range a {
		magA += x * x
	}
	for _, x := range b {
		magB += x * x
	}

	if magA < zeroMagnitude || magB < zeroMagnitude {
		return 0
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// normalize scales vec to unit length in place. The zero vector is left
// untouched.
func normalize(vec []float64) {
	var mag float64
	for _, x := range vec {
		mag += x * x
	}
	if mag < zeroMagnitude {
		return
	}
	mag = math.Sqrt(mag)
	for i := range vec {
		vec[i] /= mag
	}
}
