// Package span defines the core data model for detected sensitive-data
// occurrences (PHI/PII spans) flowing through the Umbra decision pipeline.
//
// # Overview
//
// A Span is produced by an upstream detector (regex or NER engine) and
// describes a candidate sensitive substring: its character range, its
// classification (FilterType), a confidence score, and an ordered window
// of nearby context tokens. Spans are immutable by convention: the only
// fields downstream components mutate are Confidence (adjusted by the
// confidence modifier engine) and the disambiguation outcome fields
// (DisambiguationScore, AmbiguousWith).
//
// # Lifecycle
//
//  1. Created by upstream detectors with a populated context window.
//  2. Confidence adjusted in place by the confidence engine.
//  3. Consumed by the disambiguation engine; one survivor per range.
//  4. Handed to the redaction writer.
//
// The package also provides the tokenizer used to build context windows
// from free text.
package span
