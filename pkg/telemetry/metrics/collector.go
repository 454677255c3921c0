package metrics

import (
	"sync"
	"time"

	"umbra-hq/umbra/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the orchestrator for all Prometheus metrics in Umbra. It
// owns the registry, registers every metric family once, and provides a
// unified recording interface so components never touch prometheus types
// directly.
//
// Plugin names come from operator-supplied manifests, so the plugin label
// is cardinality-limited: past the limit, new names aggregate into "other".
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	pipeline   *PipelineMetrics
	plugins    *PluginMetrics
	resilience *ResilienceMetrics
	audit      *AuditMetrics

	pluginNames *CardinalityLimiter
}

// NewCollector creates a metrics collector backed by the given registry.
// If registry is nil, a fresh registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.StageDurationBuckets) == 0 {
		cfg.StageDurationBuckets = config.DefaultStageDurationBuckets
	}
	if len(cfg.SpanCountBuckets) == 0 {
		cfg.SpanCountBuckets = config.DefaultSpanCountBuckets
	}

	c := &Collector{
		config:      cfg,
		registry:    registry,
		pluginNames: NewCardinalityLimiter(500),
	}

	c.pipeline = NewPipelineMetrics(cfg, registry)
	c.plugins = NewPluginMetrics(cfg, registry)
	c.resilience = NewResilienceMetrics(cfg, registry)
	c.audit = NewAuditMetrics(cfg, registry)

	return c
}

// RecordDocument records a completed document pass through the pipeline.
// Outcome is "redacted", "short_circuited", or "error".
func (c *Collector) RecordDocument(outcome string, duration time.Duration, detected, redacted int) {
	if !c.config.Enabled {
		return
	}
	c.pipeline.RecordDocument(outcome)
	c.pipeline.RecordStage("total", duration)
	c.pipeline.RecordSpans(detected, redacted)
}

// RecordStage records the duration of a single pipeline stage.
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.pipeline.RecordStage(stage, duration)
}

// RecordShortCircuit records a short-circuit decision by a plugin.
func (c *Collector) RecordShortCircuit(plugin string) {
	if !c.config.Enabled {
		return
	}
	c.pipeline.RecordShortCircuit(c.pluginLabel(plugin))
}

// RecordPluginInvocation records a sandboxed hook execution.
func (c *Collector) RecordPluginInvocation(plugin, hook string, duration time.Duration, failed bool) {
	if !c.config.Enabled {
		return
	}
	c.plugins.RecordInvocation(c.pluginLabel(plugin), hook, duration, failed)
}

// RecordPluginTimeout records a hook timeout.
func (c *Collector) RecordPluginTimeout(plugin string) {
	if !c.config.Enabled {
		return
	}
	c.plugins.RecordTimeout(c.pluginLabel(plugin))
}

// RecordPluginAutoDisable records a plugin disabled by its failure streak.
func (c *Collector) RecordPluginAutoDisable(plugin string) {
	if !c.config.Enabled {
		return
	}
	c.plugins.RecordAutoDisable(c.pluginLabel(plugin))
}

// SetEnabledPlugins updates the enabled plugin gauge.
func (c *Collector) SetEnabledPlugins(n int) {
	if !c.config.Enabled {
		return
	}
	c.plugins.SetEnabledCount(n)
}

// RecordBreakerTransition records a circuit breaker state change.
func (c *Collector) RecordBreakerTransition(breaker, from, to string, stateValue int) {
	if !c.config.Enabled {
		return
	}
	c.resilience.RecordBreakerTransition(breaker, from, to, stateValue)
}

// RecordBreakerRejection records a call rejected by an open breaker.
func (c *Collector) RecordBreakerRejection(breaker string) {
	if !c.config.Enabled {
		return
	}
	c.resilience.RecordBreakerRejection(breaker)
}

// UpdateQueue updates the queue depth and paused gauges.
func (c *Collector) UpdateQueue(queue string, depth int, paused bool) {
	if !c.config.Enabled {
		return
	}
	c.resilience.UpdateQueue(queue, depth, paused)
}

// RecordQueueDrop records an item dropped at queue capacity.
func (c *Collector) RecordQueueDrop(queue string) {
	if !c.config.Enabled {
		return
	}
	c.resilience.RecordQueueDrop(queue)
}

// RecordSupervisorRestart records a supervised worker restart.
func (c *Collector) RecordSupervisorRestart(child string) {
	if !c.config.Enabled {
		return
	}
	c.resilience.RecordSupervisorRestart(child)
}

// RecordAuditWrite records an audit write attempt.
func (c *Collector) RecordAuditWrite(backend string, failed bool) {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordWrite(backend, failed)
}

// RecordAuditPruned records records removed by the retention job.
func (c *Collector) RecordAuditPruned(count int64) {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordPruned(count)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) pluginLabel(plugin string) string {
	if !c.pluginNames.Allow(plugin) {
		return "other"
	}
	return plugin
}

// CardinalityLimiter bounds the number of unique label values admitted for
// an unbounded label source.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// unique values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether the value is admitted. Known values are always
// admitted; new values are admitted until the limit is reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
