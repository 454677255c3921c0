// Package confidence implements the confidence modifier engine: a
// data-driven rule set that adjusts span confidence scores using evidence
// from the text surrounding each span.
//
// # Overview
//
// Modifiers are data, not code. Each modifier names the filter types it
// applies to, a condition over the span's surroundings (literal text before
// or after the span, a regex over the surrounding text, keywords or a
// pattern over the context window), and an action:
//
//   - OVERRIDE: replace confidence with a fixed value
//   - DELTA: additive adjustment applied in log-odds space
//   - MULTIPLY: scale confidence by a factor
//
// All results pass through a soft clamp that keeps confidence strictly
// inside (0,1), so no span ever becomes permanently un-adjustable.
//
// # Keyword Index
//
// Before evaluating a batch, the engine precomputes which registered
// keywords appear in each span's context window using a two-tier membership
// test: a Bloom filter rejects clearly-absent keywords in O(1), and only
// survivors are confirmed against the exact keyword set. This turns an
// O(window x keywords) scan into O(window + keywords-per-modifier).
//
// # Hot Reload
//
// Modifier rule files (YAML) can be watched with a Watcher; on change the
// registry is rebuilt and swapped atomically.
package confidence
