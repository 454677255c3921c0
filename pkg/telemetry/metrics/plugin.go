package metrics

import (
	"time"

	"umbra-hq/umbra/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PluginMetrics tracks sandboxed plugin hook execution.
//
// Metrics:
//   - umbra_core_plugin_invocations_total: Hook invocations by plugin and hook
//   - umbra_core_plugin_duration_seconds: Hook execution latency
//   - umbra_core_plugin_errors_total: Hook failures by plugin and hook
//   - umbra_core_plugin_timeouts_total: Hook timeouts by plugin
//   - umbra_core_plugin_auto_disables_total: Automatic disables by plugin
//   - umbra_core_plugins_enabled: Currently enabled plugin count
type PluginMetrics struct {
	invocationsTotal *prometheus.CounterVec

	duration *prometheus.HistogramVec

	errorsTotal *prometheus.CounterVec

	timeoutsTotal *prometheus.CounterVec

	autoDisablesTotal *prometheus.CounterVec

	enabled prometheus.Gauge
}

// NewPluginMetrics creates and registers plugin metrics with the provided
// registry.
func NewPluginMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PluginMetrics {
	pm := &PluginMetrics{
		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plugin_invocations_total",
				Help:      "Total number of plugin hook invocations",
			},
			[]string{"plugin", "hook"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plugin_duration_seconds",
				Help:      "Duration of plugin hook executions in seconds",
				Buckets:   cfg.StageDurationBuckets,
			},
			[]string{"plugin", "hook"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plugin_errors_total",
				Help:      "Total number of plugin hook failures",
			},
			[]string{"plugin", "hook"},
		),

		timeoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plugin_timeouts_total",
				Help:      "Total number of plugin hook timeouts",
			},
			[]string{"plugin"},
		),

		autoDisablesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plugin_auto_disables_total",
				Help:      "Plugins disabled after consecutive failures",
			},
			[]string{"plugin"},
		),

		enabled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "plugins_enabled",
				Help:      "Number of currently enabled plugins",
			},
		),
	}

	registry.MustRegister(
		pm.invocationsTotal,
		pm.duration,
		pm.errorsTotal,
		pm.timeoutsTotal,
		pm.autoDisablesTotal,
		pm.enabled,
	)

	return pm
}

// RecordInvocation records a single hook execution.
func (pm *PluginMetrics) RecordInvocation(plugin, hook string, duration time.Duration, failed bool) {
	pm.invocationsTotal.WithLabelValues(plugin, hook).Inc()
	pm.duration.WithLabelValues(plugin, hook).Observe(duration.Seconds())
	if failed {
		pm.errorsTotal.WithLabelValues(plugin, hook).Inc()
	}
}

// RecordTimeout records a hook timeout.
func (pm *PluginMetrics) RecordTimeout(plugin string) {
	pm.timeoutsTotal.WithLabelValues(plugin).Inc()
}

// RecordAutoDisable records a plugin being disabled by its failure streak.
func (pm *PluginMetrics) RecordAutoDisable(plugin string) {
	pm.autoDisablesTotal.WithLabelValues(plugin).Inc()
}

// SetEnabledCount updates the enabled plugin gauge.
func (pm *PluginMetrics) SetEnabledCount(n int) {
	pm.enabled.Set(float64(n))
}
