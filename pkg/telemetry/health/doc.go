// Package health provides liveness and readiness probes for Umbra.
//
// Liveness only reports that the process is up. Readiness aggregates
// component checks registered at startup: the stream runner reports its
// circuit breaker state and queue saturation, the plugin manager reports
// plugins stuck in an error state. A failing component answers 503 on the
// readiness path so load balancers drain traffic while the process keeps
// running and recovering.
package health
