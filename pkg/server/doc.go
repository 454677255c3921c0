// Package server provides the HTTP front door for the redaction engine.
//
// It ties the pipeline, streaming runner, telemetry, and audit store
// together behind a small API surface and manages server lifecycle:
// start, graceful shutdown, and OS signals (SIGTERM, SIGINT).
//
// # Endpoints
//
//   - POST /v1/redact   - run one document through the pipeline
//   - GET  /v1/audit    - query stored audit records
//   - GET  /healthz     - liveness
//   - GET  /readyz      - readiness (breaker, queue, plugin checks)
//   - GET  /metrics     - Prometheus exposition
//   - GET  /version     - build information
//
// # Basic Usage
//
//	srv := server.New(&cfg.Server, server.Deps{
//	    Pipeline:  pipe,
//	    Runner:    runner,
//	    Health:    checker,
//	    Collector: collector,
//	    Audit:     storage,
//	}, logger)
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until the context is cancelled, a signal arrives, or the
// listener fails, then drains in-flight requests within the configured
// shutdown timeout.
package server
