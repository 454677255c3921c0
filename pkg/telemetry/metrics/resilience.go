package metrics

import (
	"umbra-hq/umbra/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Circuit breaker state values exported by the breaker_state gauge.
const (
	BreakerStateClosed   = 0
	BreakerStateOpen     = 1
	BreakerStateHalfOpen = 2
)

// ResilienceMetrics tracks the supervision primitives that keep the stream
// path alive: circuit breakers, backpressure queues, and supervised workers.
//
// Metrics:
//   - umbra_core_breaker_state: Current breaker state (0/1/2)
//   - umbra_core_breaker_transitions_total: State transitions by from/to
//   - umbra_core_breaker_rejections_total: Calls rejected while open
//   - umbra_core_queue_depth: Current queue depth
//   - umbra_core_queue_paused: Whether the queue is paused (0/1)
//   - umbra_core_queue_dropped_total: Items dropped at capacity
//   - umbra_core_supervisor_restarts_total: Child restarts by child ID
type ResilienceMetrics struct {
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	breakerRejections  *prometheus.CounterVec

	queueDepth   *prometheus.GaugeVec
	queuePaused  *prometheus.GaugeVec
	queueDropped *prometheus.CounterVec

	supervisorRestarts *prometheus.CounterVec
}

// NewResilienceMetrics creates and registers resilience metrics with the
// provided registry.
func NewResilienceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ResilienceMetrics {
	rm := &ResilienceMetrics{
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"breaker"},
		),

		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "from", "to"},
		),

		breakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaker_rejections_total",
				Help:      "Calls rejected while the breaker was open",
			},
			[]string{"breaker"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_depth",
				Help:      "Current number of items in the backpressure queue",
			},
			[]string{"queue"},
		),

		queuePaused: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_paused",
				Help:      "Whether the backpressure queue is paused (0/1)",
			},
			[]string{"queue"},
		),

		queueDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "queue_dropped_total",
				Help:      "Items dropped because the queue was at capacity",
			},
			[]string{"queue"},
		),

		supervisorRestarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "supervisor_restarts_total",
				Help:      "Supervised child restarts by child ID",
			},
			[]string{"child"},
		),
	}

	registry.MustRegister(
		rm.breakerState,
		rm.breakerTransitions,
		rm.breakerRejections,
		rm.queueDepth,
		rm.queuePaused,
		rm.queueDropped,
		rm.supervisorRestarts,
	)

	return rm
}

// RecordBreakerTransition records a breaker state change and updates the
// state gauge.
func (rm *ResilienceMetrics) RecordBreakerTransition(breaker, from, to string, stateValue int) {
	rm.breakerTransitions.WithLabelValues(breaker, from, to).Inc()
	rm.breakerState.WithLabelValues(breaker).Set(float64(stateValue))
}

// RecordBreakerRejection records a call rejected by an open breaker.
func (rm *ResilienceMetrics) RecordBreakerRejection(breaker string) {
	rm.breakerRejections.WithLabelValues(breaker).Inc()
}

// UpdateQueue updates the depth and paused gauges for a queue.
func (rm *ResilienceMetrics) UpdateQueue(queue string, depth int, paused bool) {
	rm.queueDepth.WithLabelValues(queue).Set(float64(depth))
	v := 0.0
	if paused {
		v = 1.0
	}
	rm.queuePaused.WithLabelValues(queue).Set(v)
}

// RecordQueueDrop records an item dropped at queue capacity.
func (rm *ResilienceMetrics) RecordQueueDrop(queue string) {
	rm.queueDropped.WithLabelValues(queue).Inc()
}

// RecordSupervisorRestart records a supervised child restart.
func (rm *ResilienceMetrics) RecordSupervisorRestart(child string) {
	rm.supervisorRestarts.WithLabelValues(child).Inc()
}
