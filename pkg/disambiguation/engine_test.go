package disambiguation

import (
	"context"
	"errors"
	"testing"

	"umbra-hq/umbra/pkg/span"
)

func candidate(ft span.FilterType, start, end int, conf float64, window ...string) *span.Span {
	return &span.Span{
		FilterType:     ft,
		CharacterStart: start,
		CharacterEnd:   end,
		Text:           "123-45-6789",
		Confidence:     conf,
		Window:         window,
		Priority:       ft.Specificity(),
	}
}

// ============================================================================
// Keyword Strategy Tests
// ============================================================================

// The canonical ambiguity: a 9-digit run that could be an SSN or a phone
// number, with "ssn" sitting in the context window.
func TestKeywordStrategy_SSNBeatsPhone(t *testing.T) {
	k := NewKeywordStrategy(DefaultKeywordConfig(), nil)
	e := NewEngine(k, nil, nil)

	spans := []*span.Span{
		candidate(span.FilterSSN, 10, 21, 0.6, "patient", "ssn", "is"),
		candidate(span.FilterPhone, 10, 21, 0.6, "patient", "ssn", "is"),
	}

	out := e.DisambiguateAll(context.Background(), spans)

	if len(out) != 1 {
		t.Fatalf("Expected one survivor, got %d", len(out))
	}
	winner := out[0]
	if winner.FilterType != span.FilterSSN {
		t.Errorf("Winner = %s, want SSN", winner.FilterType)
	}
	if winner.DisambiguationScore == nil {
		t.Fatal("Winner must carry a disambiguation score")
	}
	if len(winner.AmbiguousWith) != 1 || winner.AmbiguousWith[0] != span.FilterPhone {
		t.Errorf("AmbiguousWith = %v, want [PHONE]", winner.AmbiguousWith)
	}
}

func TestKeywordStrategy_ThresholdFallback(t *testing.T) {
	k := NewKeywordStrategy(KeywordConfig{ScoreThreshold: 0.9}, nil)

	group := []*span.Span{
		candidate(span.FilterSSN, 0, 9, 0.3, "xyzzy"),
		candidate(span.FilterPhone, 0, 9, 0.5, "xyzzy"),
	}

	decision := k.Resolve(group)
	if !decision.Fallback {
		t.Error("Expected fallback below threshold")
	}
	// Fallback orders by confidence: PHONE at 0.5 beats SSN at 0.3
	if group[decision.WinnerIndex].FilterType != span.FilterPhone {
		t.Errorf("Fallback winner = %s, want PHONE", group[decision.WinnerIndex].FilterType)
	}
}

func TestKeywordStrategy_FallbackTieBreaksByPriority(t *testing.T) {
	k := NewKeywordStrategy(KeywordConfig{ScoreThreshold: 0.9}, nil)

	group := []*span.Span{
		candidate(span.FilterPhone, 0, 9, 0.5, "xyzzy"),
		candidate(span.FilterSSN, 0, 9, 0.5, "xyzzy"),
	}

	decision := k.Resolve(group)
	// Equal confidence: SSN's higher priority (specificity) wins
	if group[decision.WinnerIndex].FilterType != span.FilterSSN {
		t.Errorf("Tie winner = %s, want SSN", group[decision.WinnerIndex].FilterType)
	}
}

func TestTokenSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"ssn", "ssn", 1, 1},
		{"", "ssn", 0, 0},
		{"telephone", "telephon", 0.9, 1},
		{"ssn", "qqq", 0, 0.01},
		{"record", "records", 0.9, 1},
	}

	for _, tt := range tests {
		got := TokenSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("TokenSimilarity(%q, %q) = %g, want in [%g,%g]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

// ============================================================================
// Engine Behavior Tests
// ============================================================================

func TestEngine_UnambiguousPassThrough(t *testing.T) {
	e := NewEngine(nil, nil, nil)

	spans := []*span.Span{
		candidate(span.FilterSSN, 0, 9, 0.8, "ssn"),
		candidate(span.FilterPhone, 20, 30, 0.7, "call"),
	}

	out := e.DisambiguateAll(context.Background(), spans)
	if len(out) != 2 {
		t.Fatalf("Expected 2 survivors, got %d", len(out))
	}
	for _, sp := range out {
		if sp.DisambiguationScore != nil {
			t.Error("Unambiguous spans must not get a disambiguation score")
		}
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := NewEngine(NewKeywordStrategy(DefaultKeywordConfig(), nil), nil, nil)

	spans := []*span.Span{
		candidate(span.FilterSSN, 10, 21, 0.6, "patient", "ssn", "is"),
		candidate(span.FilterPhone, 10, 21, 0.6, "patient", "ssn", "is"),
		candidate(span.FilterDate, 30, 40, 0.9, "admitted", "on"),
	}

	once := e.DisambiguateAll(context.Background(), spans)
	twice := e.DisambiguateAll(context.Background(), once)

	if len(once) != 2 || len(twice) != 2 {
		t.Fatalf("Survivor counts = %d then %d, want 2 and 2", len(once), len(twice))
	}

	// No same-range duplicates remain
	seen := make(map[span.Range]bool)
	for _, sp := range twice {
		if seen[sp.Range()] {
			t.Errorf("Duplicate range after re-run: %+v", sp.Range())
		}
		seen[sp.Range()] = true
	}
}

func TestEngine_Deterministic(t *testing.T) {
	run := func() span.FilterType {
		e := NewEngine(NewKeywordStrategy(DefaultKeywordConfig(), nil), nil, nil)
		spans := []*span.Span{
			candidate(span.FilterSSN, 10, 21, 0.6, "patient", "ssn", "is"),
			candidate(span.FilterPhone, 10, 21, 0.6, "patient", "ssn", "is"),
		}
		return e.DisambiguateAll(context.Background(), spans)[0].FilterType
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); got != first {
			t.Fatalf("Run %d winner = %s, first run = %s", i, got, first)
		}
	}
}

func TestEngine_LosersAreCachedToo(t *testing.T) {
	e := NewEngine(NewKeywordStrategy(DefaultKeywordConfig(), nil), nil, nil)

	spans := []*span.Span{
		candidate(span.FilterSSN, 10, 21, 0.6, "patient", "ssn", "is"),
		candidate(span.FilterPhone, 10, 21, 0.6, "patient", "ssn", "is"),
	}
	e.DisambiguateAll(context.Background(), spans)

	cache := e.Cache()
	key := spans[0].NormalizedWindow()
	if len(cache.VectorsFor(key, span.FilterSSN)) == 0 {
		t.Error("Winner should be cached")
	}
	if len(cache.VectorsFor(key, span.FilterPhone)) == 0 {
		t.Error("Loser should be cached as well")
	}
}

// History must come from earlier passes only: group members observed
// during the current pass would otherwise score cosine 1 against
// themselves and drown out real history.
func TestEngine_ResolutionIgnoresOwnPass(t *testing.T) {
	vec := NewVectorStrategy(DefaultVectorConfig(), nil, nil)
	e := NewEngine(vec, vec, nil)
	window := []string{"patient", "ssn", "number", "follows"}

	// Prior pass seeds SSN history for this window.
	e.DisambiguateAll(context.Background(), []*span.Span{
		candidate(span.FilterSSN, 10, 21, 0.9, window...),
	})

	// Now a lower-confidence SSN against a higher-confidence PHONE with
	// no history. History should carry the SSN.
	out := e.DisambiguateAll(context.Background(), []*span.Span{
		candidate(span.FilterSSN, 40, 51, 0.5, window...),
		candidate(span.FilterPhone, 40, 51, 0.6, window...),
	})

	if len(out) != 1 {
		t.Fatalf("Expected one survivor, got %d", len(out))
	}
	winner := out[0]
	if winner.FilterType != span.FilterSSN {
		t.Fatalf("Winner = %s, want SSN backed by history", winner.FilterType)
	}
	// 0.6·cosine(1) + 0.4·0.5 for SSN; PHONE stays at raw confidence 0.6.
	if winner.DisambiguationScore == nil {
		t.Fatal("Winner must carry a disambiguation score")
	}
	if got := *winner.DisambiguationScore; got < 0.79 || got > 0.81 {
		t.Errorf("Score = %v, want ~0.80 from history blend", got)
	}
}

func TestEngine_SurvivorsInDocumentOrder(t *testing.T) {
	e := NewEngine(nil, nil, nil)

	spans := []*span.Span{
		candidate(span.FilterDate, 50, 60, 0.9, "on"),
		candidate(span.FilterSSN, 0, 9, 0.8, "ssn"),
	}

	out := e.DisambiguateAll(context.Background(), spans)
	if out[0].CharacterStart != 0 || out[1].CharacterStart != 50 {
		t.Errorf("Survivors out of document order: %v, %v", out[0], out[1])
	}
}

// ============================================================================
// Embedding Strategy Tests
// ============================================================================

// stubProvider returns fixed embeddings, or an error when broken.
type stubProvider struct {
	broken bool
	vec    []float32
}

func (s *stubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if s.broken {
		return nil, errors.New("provider down")
	}
	return s.vec, nil
}

func TestEmbeddingStrategy_DegradesToHashVectors(t *testing.T) {
	fallback := NewVectorStrategy(DefaultVectorConfig(), nil, nil)
	e := NewEmbeddingStrategy(&stubProvider{broken: true}, fallback, nil)

	group := []*span.Span{
		candidate(span.FilterSSN, 10, 21, 0.8, "patient", "ssn"),
		candidate(span.FilterPhone, 10, 21, 0.4, "patient", "ssn"),
	}

	decision := e.Resolve(group)
	// Hash fallback with empty cache scores raw confidence: SSN wins
	if group[decision.WinnerIndex].FilterType != span.FilterSSN {
		t.Errorf("Degraded winner = %s, want SSN", group[decision.WinnerIndex].FilterType)
	}
}

func TestEmbeddingStrategy_NilProviderDegrades(t *testing.T) {
	e := NewEmbeddingStrategy(nil, nil, nil)

	group := []*span.Span{
		candidate(span.FilterSSN, 10, 21, 0.8, "patient", "ssn"),
		candidate(span.FilterPhone, 10, 21, 0.4, "patient", "ssn"),
	}

	decision := e.Resolve(group)
	if group[decision.WinnerIndex].FilterType != span.FilterSSN {
		t.Errorf("Winner = %s, want SSN", group[decision.WinnerIndex].FilterType)
	}
}

func TestEmbeddingStrategy_ScoresAgainstPrototypes(t *testing.T) {
	// All embeddings identical: similarity 1 for every type that has a
	// prototype, so confidence decides.
	provider := &stubProvider{vec: []float32{1, 0, 0}}
	e := NewEmbeddingStrategy(provider, nil, nil)

	group := []*span.Span{
		candidate(span.FilterSSN, 10, 21, 0.9, "patient", "ssn"),
		candidate(span.FilterPhone, 10, 21, 0.2, "patient", "ssn"),
	}

	decision := e.Resolve(group)
	if group[decision.WinnerIndex].FilterType != span.FilterSSN {
		t.Errorf("Winner = %s, want SSN", group[decision.WinnerIndex].FilterType)
	}
	if decision.Score <= 0.7 {
		t.Errorf("Score = %g, want similarity-dominated score above 0.7", decision.Score)
	}
}
