// Package disambiguation resolves spans that compete for the same
// character range under different classifications. A 9-digit run might be
// an SSN, a phone number, or a record number; exactly one must survive.
//
// # Strategies
//
// Three interchangeable strategies implement the Strategy interface:
//
//   - VectorStrategy: hashes context words into fixed-length vectors,
//     compares candidates against cached same-type observations with
//     cosine similarity, and blends similarity with detector confidence.
//   - KeywordStrategy: scores candidates by overlap between the context
//     window and a static per-type vocabulary, with fuzzy token matching.
//     Falls back to confidence-then-priority ordering when no candidate
//     clears the score threshold.
//   - EmbeddingStrategy: replaces hash vectors with learned sentence
//     embeddings from a pluggable provider and compares against per-type
//     prototype embeddings. Degrades to the hash-vector path whenever the
//     provider is unavailable.
//
// # Common Behavior
//
// Whatever strategy is active, every observed span (winner or loser) is
// recorded in the observation cache so future lookups have history. The
// winner's DisambiguationScore is set to its winning score and
// AmbiguousWith records the rejected filter types. Disambiguation never
// fails: every degraded path ends in a deterministic heuristic.
package disambiguation
