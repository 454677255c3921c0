package metrics

import (
	"time"

	"umbra-hq/umbra/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks document flow through the redaction pipeline.
//
// Metrics:
//   - umbra_core_documents_total: Documents processed by outcome
//   - umbra_core_stage_duration_seconds: Per-stage latency histogram
//   - umbra_core_spans_detected: Spans detected per document
//   - umbra_core_spans_redacted_total: Total spans redacted
//   - umbra_core_short_circuits_total: Pipeline short-circuits by plugin
type PipelineMetrics struct {
	documentsTotal *prometheus.CounterVec

	stageDuration *prometheus.HistogramVec

	spansDetected prometheus.Histogram

	spansRedactedTotal prometheus.Counter

	shortCircuitsTotal *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics with the
// provided registry.
func NewPipelineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "documents_total",
				Help:      "Total number of documents processed",
			},
			[]string{"outcome"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				Buckets:   cfg.StageDurationBuckets,
			},
			[]string{"stage"},
		),

		spansDetected: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "spans_detected",
				Help:      "Number of spans detected per document",
				Buckets:   cfg.SpanCountBuckets,
			},
		),

		spansRedactedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "spans_redacted_total",
				Help:      "Total number of spans replaced in output text",
			},
		),

		shortCircuitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "short_circuits_total",
				Help:      "Documents that skipped the pipeline via a short-circuit hook",
			},
			[]string{"plugin"},
		),
	}

	registry.MustRegister(
		pm.documentsTotal,
		pm.stageDuration,
		pm.spansDetected,
		pm.spansRedactedTotal,
		pm.shortCircuitsTotal,
	)

	return pm
}

// RecordDocument records a completed document pass.
func (pm *PipelineMetrics) RecordDocument(outcome string) {
	pm.documentsTotal.WithLabelValues(outcome).Inc()
}

// RecordStage records the duration of a single pipeline stage.
func (pm *PipelineMetrics) RecordStage(stage string, duration time.Duration) {
	pm.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordSpans records span counts for a document.
func (pm *PipelineMetrics) RecordSpans(detected, redacted int) {
	pm.spansDetected.Observe(float64(detected))
	pm.spansRedactedTotal.Add(float64(redacted))
}

// RecordShortCircuit records a short-circuit decision by a plugin.
func (pm *PipelineMetrics) RecordShortCircuit(plugin string) {
	pm.shortCircuitsTotal.WithLabelValues(plugin).Inc()
}
