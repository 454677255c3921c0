package disambiguation

import (
	"math"
	"strings"

	"umbra-hq/umbra/pkg/span"
)

const (
	// keywordSimilarityWeight and keywordConfidenceWeight blend vocabulary
	// overlap with detector confidence.
	keywordSimilarityWeight = 0.7
	keywordConfidenceWeight = 0.3

	// fuzzyMatchThreshold is the minimum token similarity for a fuzzy
	// vocabulary hit.
	fuzzyMatchThreshold = 0.7

	// defaultScoreThreshold is the minimum winning score before the
	// strategy falls back to confidence-then-priority ordering.
	defaultScoreThreshold = 0.15
)

// typeVocabularies maps each filter type to context words that typically
// surround it. Overlap with a span's window is evidence for that type.
var typeVocabularies = map[span.FilterType][]string{
	span.FilterSSN:        {"ssn", "social", "security", "taxpayer", "tin"},
	span.FilterMRN:        {"mrn", "medical", "record", "chart", "patient", "admission"},
	span.FilterCreditCard: {"card", "credit", "visa", "mastercard", "amex", "payment", "expiration"},
	span.FilterAccount:    {"account", "acct", "routing", "balance", "bank", "deposit"},
	span.FilterLicense:    {"license", "dl", "driver", "permit"},
	span.FilterPassport:   {"passport", "travel", "citizenship"},
	span.FilterIBAN:       {"iban", "swift", "bic", "wire", "transfer"},
	span.FilterHealthPlan: {"plan", "policy", "insurance", "member", "group", "subscriber"},
	span.FilterEmail:      {"email", "mail", "contact", "address"},
	span.FilterPhone:      {"phone", "call", "tel", "telephone", "cell", "mobile", "contact"},
	span.FilterFax:        {"fax", "facsimile"},
	span.FilterIP:         {"ip", "server", "host", "network", "gateway"},
	span.FilterURL:        {"url", "http", "link", "website", "visit"},
	span.FilterDate:       {"date", "on", "dob", "born", "admitted", "discharged", "scheduled"},
	span.FilterZipcode:    {"zip", "zipcode", "postal", "code"},
	span.FilterAddress:    {"street", "avenue", "road", "suite", "apt", "address", "lives"},
	span.FilterAge:        {"age", "aged", "years", "old", "yo"},
	span.FilterName:       {"name", "mr", "mrs", "ms", "dr", "patient", "person"},
	span.FilterVehicle:    {"vin", "vehicle", "plate", "car"},
	span.FilterDevice:     {"device", "serial", "implant", "model"},
}

// KeywordConfig configures the keyword heuristic strategy.
type KeywordConfig struct {
	// ScoreThreshold is the minimum winning score before falling back to
	// confidence-then-priority ordering.
	// Default: 0.15
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// DefaultKeywordConfig returns the default keyword strategy configuration.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{ScoreThreshold: defaultScoreThreshold}
}

// KeywordStrategy scores ambiguous candidates by overlap between the
// context window and a static per-type vocabulary.
type KeywordStrategy struct {
	config KeywordConfig
	vocab  map[span.FilterType][]string
}

// NewKeywordStrategy creates the keyword heuristic strategy. A nil vocab
// uses the built-in per-type vocabularies.
func NewKeywordStrategy(cfg KeywordConfig, vocab map[span.FilterType][]string) *KeywordStrategy {
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = defaultScoreThreshold
	}
	if vocab == nil {
		vocab = typeVocabularies
	}
	return &KeywordStrategy{config: cfg, vocab: vocab}
}

// Name returns the strategy identifier.
func (k *KeywordStrategy) Name() string { return "keyword" }

// Score computes 0.7*normalizedOverlap + 0.3*confidence for one span.
// Overlap counts exact substring hits plus fuzzy token matches against the
// window, normalized by vocabulary size. A type with no vocabulary scores
// confidence weight only.
func (k *KeywordStrategy) Score(sp *span.Span) float64 {
	vocab := k.vocab[sp.FilterType]
	if len(vocab) == 0 {
		return keywordConfidenceWeight * sp.Confidence
	}

	window := make([]string, len(sp.Window))
	for i, w := range sp.Window {
		window[i] = strings.ToLower(strings.TrimSpace(w))
	}

	matches := 0
	for _, kw := range vocab {
		if k.windowMatches(window, kw) {
			matches++
		}
	}

	overlap := float64(matches) / float64(len(vocab))
	return keywordSimilarityWeight*overlap + keywordConfidenceWeight*sp.Confidence
}

// windowMatches reports whether the keyword hits any window token exactly,
// as a substring, or fuzzily above the similarity threshold.
func (k *KeywordStrategy) windowMatches(window []string, keyword string) bool {
	for _, tok := range window {
		if tok == "" {
			continue
		}
		if strings.Contains(tok, keyword) || (strings.Contains(keyword, tok) && len(tok) > 2) {
			return true
		}
		if TokenSimilarity(tok, keyword) > fuzzyMatchThreshold {
			return true
		}
	}
	return false
}

// Resolve picks the best-scoring candidate, falling back to
// confidence-then-priority ordering when the best score is below the
// threshold.
func (k *KeywordStrategy) Resolve(group []*span.Span) Decision {
	best := 0
	bestScore := math.Inf(-1)
	for i, sp := range group {
		score := k.Score(sp)
		if score > bestScore || (score == bestScore && lessPreferred(group[best], sp)) {
			best = i
			bestScore = score
		}
	}

	if bestScore < k.config.ScoreThreshold {
		best = 0
		for i := 1; i < len(group); i++ {
			if lessPreferred(group[best], group[i]) {
				best = i
			}
		}
		return Decision{WinnerIndex: best, Score: group[best].Confidence, Fallback: true}
	}

	return Decision{WinnerIndex: best, Score: bestScore}
}

// TokenSimilarity returns a Jaro-Winkler similarity between two tokens in
// [0,1]. Equal tokens score 1; tokens sharing no characters score 0.
func TokenSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	jaro := jaroSimilarity(a, b)

	// Winkler boost: weight shared prefixes up to 4 characters.
	prefix := 0
	for i := 0; i < len(a) && i < len(b) && i < 4; i++ {
		if a[i] != b[i] {
			break
		}
		prefix++
	}
	return jaro + float64(prefix)*0.1*(1-jaro)
}

func jaroSimilarity(a, b string) float64 {
	window := len(a)
	if len(b) > window {
		window = len(b)
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0

	for i := 0; i < len(a); i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(b) {
			hi = len(b)
		}
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	// Count transpositions among matched characters.
	transpositions := 0
	j := 0
	for i := 0; i < len(a); i++ {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}
