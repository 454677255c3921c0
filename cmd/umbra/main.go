// Umbra is a PHI/PII redaction decision engine.
//
// It receives documents with already-detected candidate spans, refines each
// span's confidence with context modifiers, resolves overlapping candidates
// through disambiguation, and replaces the survivors with type tokens:
//   - Confidence modifier rules with optional hot reload
//   - Keyword, hash-vector, and embedding disambiguation strategies
//   - Sandboxed plugin hooks around every pipeline stage
//   - Supervised streaming workers with backpressure and a circuit breaker
//   - Audit records for every pass (memory or SQLite)
//
// Usage:
//
//	# Start server with default configuration
//	umbra run
//
//	# Start with custom configuration file
//	umbra run --config /path/to/config.yaml
//
//	# Redact a single document from a file or stdin
//	umbra redact --file note.txt --spans spans.json
//
//	# Query audit records
//	umbra audit query --outcome redacted --limit 20
//
//	# Check a modifier rule file
//	umbra rules check --file rules.yaml
//
// For complete documentation, see: https://github.com/umbra-hq/umbra
package main

func main() {
	Execute()
}
