package server

import (
	"context"
	"fmt"

	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/resilience"
	"umbra-hq/umbra/pkg/stream"
	"umbra-hq/umbra/pkg/telemetry/health"
)

// RegisterChecks wires the standard readiness checks: breaker state,
// queue saturation, and plugin health. Nil components are skipped.
func RegisterChecks(checker *health.Checker, runner *stream.Runner, plugins *plugin.Manager) {
	if runner != nil {
		checker.RegisterCheck("breaker", BreakerCheck(runner.Breaker()))
		checker.RegisterCheck("queue", QueueCheck(runner.Queue()))
	}
	if plugins != nil {
		checker.RegisterCheck("plugins", PluginCheck(plugins))
	}
}

// BreakerCheck reports unhealthy while the pipeline breaker is open.
func BreakerCheck(breaker *resilience.CircuitBreaker) health.CheckFunc {
	return func(ctx context.Context) error {
		if state := breaker.State(); state == resilience.StateOpen {
			return fmt.Errorf("circuit breaker is %s", state)
		}
		return nil
	}
}

// QueueCheck reports unhealthy while the document queue is saturated.
func QueueCheck(queue *resilience.BackpressureQueue[*plugin.Document]) health.CheckFunc {
	return func(ctx context.Context) error {
		if queue.Paused() {
			return fmt.Errorf("document queue saturated at %d items", queue.Size())
		}
		return nil
	}
}

// PluginCheck reports unhealthy when every loaded plugin has been
// auto-disabled. A subset of disabled plugins only degrades behavior, so
// the check stays healthy then.
func PluginCheck(plugins *plugin.Manager) health.CheckFunc {
	return func(ctx context.Context) error {
		infos := plugins.List()
		if len(infos) == 0 {
			return nil
		}
		enabled := 0
		for _, info := range infos {
			if info.State == plugin.StateEnabled {
				enabled++
			}
		}
		if enabled == 0 {
			return fmt.Errorf("all %d plugins disabled", len(infos))
		}
		return nil
	}
}
