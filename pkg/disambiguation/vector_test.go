package disambiguation

import (
	"math"
	"testing"

	"umbra-hq/umbra/pkg/span"
)

// ============================================================================
// Cosine Similarity Tests
// ============================================================================

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	v := []float64{1, 2, 3, 4}
	if got := CosineSimilarity(v, v); math.Abs(got-1) > 1e-9 {
		t.Errorf("CosineSimilarity(v, v) = %g, want 1", got)
	}
}

func TestCosineSimilarity_OppositeIsMinusOne(t *testing.T) {
	v := []float64{1, 2, 3}
	neg := []float64{-1, -2, -3}
	if got := CosineSimilarity(v, neg); math.Abs(got+1) > 1e-9 {
		t.Errorf("CosineSimilarity(v, -v) = %g, want -1", got)
	}
}

func TestCosineSimilarity_ZeroVectorIsNeutral(t *testing.T) {
	zero := make([]float64, 4)
	v := []float64{1, 2, 3, 4}
	if got := CosineSimilarity(zero, v); got != 0 {
		t.Errorf("CosineSimilarity(0, v) = %g, want 0", got)
	}
	if got := CosineSimilarity(v, zero); got != 0 {
		t.Errorf("CosineSimilarity(v, 0) = %g, want 0", got)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	if got := CosineSimilarity(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("Orthogonal vectors should score 0, got %g", got)
	}
}

// ============================================================================
// Vectorization Tests
// ============================================================================

func TestVectorStrategy_VectorizeNormalized(t *testing.T) {
	v := NewVectorStrategy(DefaultVectorConfig(), nil, nil)

	vec := v.Vectorize([]string{"patient", "ssn", "record"})

	var mag float64
	for _, x := range vec {
		mag += x * x
	}
	if math.Abs(mag-1) > 1e-9 {
		t.Errorf("Vector magnitude^2 = %g, want 1", mag)
	}
	if len(vec) != 512 {
		t.Errorf("Vector length = %d, want 512", len(vec))
	}
}

func TestVectorStrategy_StopWordsRemoved(t *testing.T) {
	v := NewVectorStrategy(DefaultVectorConfig(), nil, nil)

	// Only stop words: vector stays zero
	vec := v.Vectorize([]string{"the", "is", "of", "and"})
	for i, x := range vec {
		if x != 0 {
			t.Fatalf("Expected zero vector for stop-word-only window, dim %d = %g", i, x)
		}
	}
}

func TestVectorStrategy_SameWindowSameVector(t *testing.T) {
	v := NewVectorStrategy(DefaultVectorConfig(), nil, nil)

	a := v.Vectorize([]string{"patient", "ssn"})
	b := v.Vectorize([]string{"Patient", "SSN"})

	if got := CosineSimilarity(a, b); math.Abs(got-1) > 1e-9 {
		t.Errorf("Case-differing windows should vectorize identically, cos = %g", got)
	}
}

func TestVectorStrategy_PluggableHasher(t *testing.T) {
	// A constant hasher collapses every word into one dimension
	constant := func(string) uint32 { return 7 }
	v := NewVectorStrategy(VectorConfig{Dimensions: 16}, constant, nil)

	vec := v.Vectorize([]string{"alpha", "beta"})
	for i, x := range vec {
		if i == 7 && x == 0 {
			t.Error("Expected all weight in dimension 7")
		}
		if i != 7 && x != 0 {
			t.Errorf("Expected dimension %d empty, got %g", i, x)
		}
	}
}

// ============================================================================
// Scoring Tests
// ============================================================================

func TestVectorStrategy_NoHistoryScoresConfidence(t *testing.T) {
	v := NewVectorStrategy(DefaultVectorConfig(), nil, nil)

	sp := &span.Span{
		FilterType: span.FilterSSN,
		Confidence: 0.7,
		Window:     []string{"patient", "ssn"},
	}
	if got := v.Score(sp); got != 0.7 {
		t.Errorf("Score with no history = %g, want raw confidence 0.7", got)
	}
}

func TestVectorStrategy_HistoryShiftsScore(t *testing.T) {
	cache := NewObservationCache(0)
	v := NewVectorStrategy(DefaultVectorConfig(), nil, cache)

	// Record history with the identical window: cosine 1 against itself
	prior := &span.Span{
		FilterType: span.FilterSSN,
		Confidence: 0.6,
		Window:     []string{"patient", "ssn", "number"},
	}
	v.Observe(prior)

	sp := &span.Span{
		FilterType: span.FilterSSN,
		Confidence: 0.6,
		Window:     []string{"patient", "ssn", "number"},
	}
	got := v.Score(sp)
	want := 0.6*1.0 + 0.4*0.6
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %g, want %g", got, want)
	}

	// A different filter type has no history under this key
	other := &span.Span{
		FilterType: span.FilterPhone,
		Confidence: 0.6,
		Window:     []string{"patient", "ssn", "number"},
	}
	if got := v.Score(other); got != 0.6 {
		t.Errorf("Score for type without history = %g, want 0.6", got)
	}
}

// ============================================================================
// Observation Cache Tests
// ============================================================================

func TestObservationCache_PerKeyCap(t *testing.T) {
	cache := NewObservationCache(3)

	first := []float64{1}
	cache.Add("key", span.FilterSSN, first)
	cache.Add("key", span.FilterSSN, []float64{2})
	cache.Add("key", span.FilterSSN, []float64{3})
	cache.Add("key", span.FilterSSN, []float64{4})

	vecs := cache.VectorsFor("key", span.FilterSSN)
	if len(vecs) != 3 {
		t.Fatalf("Expected 3 cached vectors, got %d", len(vecs))
	}
	// Oldest evicted first
	if vecs[0][0] != 2 {
		t.Errorf("Expected oldest entry evicted; first remaining = %g", vecs[0][0])
	}
}

func TestObservationCache_FilterTypeIsolation(t *testing.T) {
	cache := NewObservationCache(0)
	cache.Add("key", span.FilterSSN, []float64{1})
	cache.Add("key", span.FilterPhone, []float64{2})

	if got := len(cache.VectorsFor("key", span.FilterSSN)); got != 1 {
		t.Errorf("Expected 1 SSN vector, got %d", got)
	}
	if got := len(cache.VectorsFor("key", span.FilterMRN)); got != 0 {
		t.Errorf("Expected 0 MRN vectors, got %d", got)
	}
	if cache.Size() != 2 || cache.Keys() != 1 {
		t.Errorf("Size/Keys = %d/%d, want 2/1", cache.Size(), cache.Keys())
	}
}

func TestObservationCache_EmptyKeyIgnored(t *testing.T) {
	cache := NewObservationCache(0)
	cache.Add("", span.FilterSSN, []float64{1})
	if cache.Size() != 0 {
		t.Error("Empty window keys must not be cached")
	}
}
