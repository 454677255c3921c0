// Package telemetry groups the observability subpackages for Umbra.
//
// # Components
//
//   - logging: structured slog logger with log-output redaction
//   - metrics: Prometheus metrics collection
//   - tracing: OpenTelemetry tracing of pipeline stages
//   - health: liveness and readiness probes
//
// Each subpackage is wired from its section of config.TelemetryConfig by
// the server entrypoint and injected into components explicitly.
package telemetry
