package disambiguation

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"umbra-hq/umbra/pkg/span"
)

const (
	// embeddingSimilarityWeight and embeddingConfidenceWeight blend
	// prototype similarity with detector confidence for the neural path.
	embeddingSimilarityWeight = 0.7
	embeddingConfidenceWeight = 0.3
)

// EmbeddingProvider produces learned sentence embeddings. Implementations
// wrap an external model endpoint; latency and failure behavior are the
// provider's own.
type EmbeddingProvider interface {
	// Embed returns the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// prototypeSentences describe each filter type; their embeddings act as
// per-type anchors that candidate windows are compared against.
var prototypeSentences = map[span.FilterType]string{
	span.FilterSSN:        "social security number of a person for tax identification",
	span.FilterMRN:        "medical record number identifying a patient chart",
	span.FilterCreditCard: "credit card number used for a payment",
	span.FilterAccount:    "bank account number for deposits and withdrawals",
	span.FilterPhone:      "telephone number used to call or text someone",
	span.FilterFax:        "fax machine number for sending documents",
	span.FilterDate:       "calendar date of an event or appointment",
	span.FilterZipcode:    "postal zip code of a mailing address",
	span.FilterHealthPlan: "health insurance plan or policy member number",
	span.FilterName:       "full name of a person",
}

// EmbeddingStrategy scores candidates with learned sentence embeddings
// against per-type prototype embeddings. Any provider failure degrades to
// the hash-vector strategy; disambiguation never depends on the provider
// being up.
type EmbeddingStrategy struct {
	provider EmbeddingProvider
	fallback *VectorStrategy
	logger   *slog.Logger

	// ctx carries the pass-scoped deadline into provider calls. Set per
	// Resolve invocation by the engine.
	ctx context.Context

	mu         sync.Mutex
	prototypes map[span.FilterType][]float64
}

// NewEmbeddingStrategy creates the neural strategy. The fallback vector
// strategy is mandatory; a nil provider makes every resolve degrade.
func NewEmbeddingStrategy(provider EmbeddingProvider, fallback *VectorStrategy, logger *slog.Logger) *EmbeddingStrategy {
	if fallback == nil {
		fallback = NewVectorStrategy(DefaultVectorConfig(), nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingStrategy{
		provider:   provider,
		fallback:   fallback,
		logger:     logger.With("component", "disambiguation.embedding"),
		ctx:        context.Background(),
		prototypes: make(map[span.FilterType][]float64),
	}
}

// Name returns the strategy identifier.
func (e *EmbeddingStrategy) Name() string { return "embedding" }

// WithContext sets the context used for provider calls during Resolve.
func (e *EmbeddingStrategy) WithContext(ctx context.Context) {
	if ctx != nil {
		e.ctx = ctx
	}
}

// Resolve scores each candidate as 0.7*cosine(window embedding, prototype)
// + 0.3*confidence. The first provider error falls back to the hash-vector
// strategy for the whole group.
func (e *EmbeddingStrategy) Resolve(group []*span.Span) Decision {
	if e.provider == nil {
		return e.fallback.Resolve(group)
	}

	windowText := strings.Join(group[0].Window, " ")
	windowVec, err := e.embed(windowText)
	if err != nil {
		e.logger.Warn("embedding provider unavailable, using hash vectors", "error", err)
		return e.fallback.Resolve(group)
	}

	best := 0
	bestScore := math.Inf(-1)
	for i, sp := range group {
		proto, err := e.prototype(sp.FilterType)
		if err != nil {
			e.logger.Warn("prototype embedding failed, using hash vectors",
				"filter_type", sp.FilterType, "error", err)
			return e.fallback.Resolve(group)
		}

		score := sp.Confidence * embeddingConfidenceWeight
		if proto != nil {
			score += embeddingSimilarityWeight * CosineSimilarity(windowVec, proto)
		}
		if score > bestScore || (score == bestScore && lessPreferred(group[best], sp)) {
			best = i
			bestScore = score
		}
	}
	return Decision{WinnerIndex: best, Score: bestScore}
}

// prototype returns the cached prototype embedding for a filter type,
// computing it on first use. Types without a prototype sentence return
// (nil, nil) and score on confidence alone.
func (e *EmbeddingStrategy) prototype(ft span.FilterType) ([]float64, error) {
	sentence, ok := prototypeSentences[ft]
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	cached, ok := e.prototypes[ft]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	vec, err := e.embed(sentence)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.prototypes[ft] = vec
	e.mu.Unlock()
	return vec, nil
}

func (e *EmbeddingStrategy) embed(text string) ([]float64, error) {
	raw, err := e.provider.Embed(e.ctx, text)
	if err != nil {
		return nil, err
	}
	vec := make([]float64, len(raw))
	for i, x := range raw {
		vec[i] = float64(x)
	}
	return vec, nil
}
