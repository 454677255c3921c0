package metrics

import (
	"umbra-hq/umbra/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the audit trail storage path.
//
// Metrics:
//   - umbra_core_audit_records_total: Records written by backend
//   - umbra_core_audit_write_errors_total: Failed writes by backend
//   - umbra_core_audit_pruned_total: Records removed by retention pruning
type AuditMetrics struct {
	recordsTotal *prometheus.CounterVec

	writeErrorsTotal *prometheus.CounterVec

	prunedTotal prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics with the provided
// registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_records_total",
				Help:      "Total number of audit records written",
			},
			[]string{"backend"},
		),

		writeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_write_errors_total",
				Help:      "Total number of failed audit writes",
			},
			[]string{"backend"},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_pruned_total",
				Help:      "Audit records removed by retention pruning",
			},
		),
	}

	registry.MustRegister(am.recordsTotal, am.writeErrorsTotal, am.prunedTotal)

	return am
}

// RecordWrite records an audit write attempt.
func (am *AuditMetrics) RecordWrite(backend string, failed bool) {
	am.recordsTotal.WithLabelValues(backend).Inc()
	if failed {
		am.writeErrorsTotal.WithLabelValues(backend).Inc()
	}
}

// RecordPruned records records removed by the retention job.
func (am *AuditMetrics) RecordPruned(count int64) {
	am.prunedTotal.Add(float64(count))
}
