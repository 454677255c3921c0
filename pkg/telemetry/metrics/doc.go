// Package metrics provides Prometheus metrics collection for Umbra.
//
// A single Collector owns the registry and fans recording calls out to
// per-concern metric families:
//
//   - PipelineMetrics: document throughput, per-stage latency, span counts
//   - PluginMetrics: sandboxed hook invocations, errors, timeouts, disables
//   - ResilienceMetrics: breaker state, queue depth, supervisor restarts
//   - AuditMetrics: audit writes and retention pruning
//
// All families share the configured namespace and subsystem (umbra_core_*
// by default). Components record through the Collector so metric naming
// and cardinality control stay in one place.
package metrics
