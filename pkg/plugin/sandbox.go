package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxConsecutiveFailures is the auto-disable threshold.
const DefaultMaxConsecutiveFailures = 3

// ExecResult is the outcome of one sandboxed hook invocation.
type ExecResult struct {
	Success        bool          `json:"success"`
	Value          any           `json:"value,omitempty"`
	Err            error         `json:"-"`
	ExecutionTime  time.Duration `json:"executionTimeMs"`
	TimedOut       bool          `json:"timedOut"`
	PluginDisabled bool          `json:"pluginDisabled"`
}

// HookFunc is the unit of work the sandbox runs: one hook invocation
// bound to its arguments.
type HookFunc func(ctx context.Context) (any, error)

// HookObserver receives hook execution outcomes, for export to an
// external metrics collector.
type HookObserver interface {
	RecordPluginInvocation(plugin, hook string, duration time.Duration, failed bool)
	RecordPluginTimeout(plugin string)
	RecordPluginAutoDisable(plugin string)
}

// Sandbox isolates hook execution: it enforces per-call timeouts, keeps
// per-plugin metrics, and auto-disables plugins that fail repeatedly. A
// timed-out hook is abandoned, not forcibly stopped; the hook's context
// is cancelled so cooperative hooks can bail out early.
type Sandbox struct {
	logger      *slog.Logger
	maxFailures int

	// onAutoDisable, when set, is told about sandbox-initiated disables
	// so the lifecycle state can follow.
	onAutoDisable func(pluginName string)

	observer HookObserver

	mu       sync.Mutex
	metrics  map[string]*pluginMetrics
	disabled map[string]bool
}

// NewSandbox creates a sandbox. maxFailures <= 0 selects the default.
func NewSandbox(maxFailures int, logger *slog.Logger) *Sandbox {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{
		logger:      logger.With("component", "plugin.sandbox"),
		maxFailures: maxFailures,
		metrics:     make(map[string]*pluginMetrics),
		disabled:    make(map[string]bool),
	}
}

// OnAutoDisable registers the callback invoked when a plugin is disabled
// by the sandbox.
func (s *Sandbox) OnAutoDisable(fn func(pluginName string)) {
	s.mu.Lock()
	s.onAutoDisable = fn
	s.mu.Unlock()
}

// SetObserver registers an execution observer. Pass nil to detach.
func (s *Sandbox) SetObserver(obs HookObserver) {
	s.mu.Lock()
	s.observer = obs
	s.mu.Unlock()
}

// Execute runs fn under the sandbox's protection. Disabled plugins
// short-circuit immediately with PluginDisabled set, without invoking fn.
func (s *Sandbox) Execute(ctx context.Context, pluginName, hookName string, timeout time.Duration, fn HookFunc) ExecResult {
	s.mu.Lock()
	if s.disabled[pluginName] {
		s.mu.Unlock()
		return ExecResult{
			Success:        false,
			Err:            fmt.Errorf("%w: %s", ErrPluginDisabled, pluginName),
			PluginDisabled: true,
		}
	}
	s.mu.Unlock()

	if timeout <= 0 {
		timeout = time.Duration(DefaultTimeoutMs) * time.Millisecond
	}

	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan ExecResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- ExecResult{
					Success: false,
					Err: &PluginExecutionError{
						Plugin: pluginName,
						Hook:   hookName,
						Err:    fmt.Errorf("panic: %v", r),
					},
				}
			}
		}()
		value, err := fn(hookCtx)
		if err != nil {
			done <- ExecResult{
				Success: false,
				Err:     &PluginExecutionError{Plugin: pluginName, Hook: hookName, Err: err},
			}
			return
		}
		done <- ExecResult{Success: true, Value: value}
	}()

	var result ExecResult
	select {
	case result = <-done:
	case <-hookCtx.Done():
		// The hook keeps running in the background; its eventual result
		// is discarded.
		result = ExecResult{
			Success:  false,
			TimedOut: true,
			Err:      &PluginTimeoutError{Plugin: pluginName, Hook: hookName, Timeout: timeout},
		}
	}
	result.ExecutionTime = time.Since(start)

	s.recordOutcome(pluginName, hookName, result)
	return result
}

// RecordShortCircuit counts a short-circuit hit for observability.
func (s *Sandbox) RecordShortCircuit(pluginName string) {
	s.mu.Lock()
	s.metricsFor(pluginName).shortCircuits++
	s.mu.Unlock()
}

// Disabled reports whether the sandbox has the plugin disabled.
func (s *Sandbox) Disabled(pluginName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled[pluginName]
}

// Enable clears a plugin's disabled flag and resets its consecutive
// failure counter. Called on operator re-enable.
func (s *Sandbox) Enable(pluginName string) {
	s.mu.Lock()
	delete(s.disabled, pluginName)
	s.metricsFor(pluginName).consecutiveFailures = 0
	s.mu.Unlock()
}

// Disable marks a plugin disabled in the sandbox.
func (s *Sandbox) Disable(pluginName string) {
	s.mu.Lock()
	s.disabled[pluginName] = true
	s.mu.Unlock()
}

// Forget drops a plugin's metrics and disabled state. Called on unload.
func (s *Sandbox) Forget(pluginName string) {
	s.mu.Lock()
	delete(s.metrics, pluginName)
	delete(s.disabled, pluginName)
	s.mu.Unlock()
}

// Stats returns one plugin's metrics snapshot.
func (s *Sandbox) Stats(pluginName string) PluginStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metrics[pluginName]; ok {
		return m.snapshot()
	}
	return PluginStats{}
}

// Report aggregates metrics across all plugins the sandbox has seen.
// Plugin totals and enabled counts are filled in by the Manager, which
// owns lifecycle state.
func (s *Sandbox) Report() MetricsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := MetricsReport{Plugins: make(map[string]PluginStats, len(s.metrics))}
	for name, m := range s.metrics {
		snap := m.snapshot()
		report.Plugins[name] = snap
		report.TotalInvocations += snap.Invocations
		report.TotalErrors += snap.Errors
		report.TotalTimeouts += snap.Timeouts
	}
	return report
}

func (s *Sandbox) metricsFor(pluginName string) *pluginMetrics {
	m, ok := s.metrics[pluginName]
	if !ok {
		m = &pluginMetrics{}
		s.metrics[pluginName] = m
	}
	return m
}

func (s *Sandbox) recordOutcome(pluginName, hookName string, result ExecResult) {
	s.mu.Lock()

	m := s.metricsFor(pluginName)
	m.record(result.ExecutionTime, result.Err, result.TimedOut)

	var autoDisabled bool
	if result.Err != nil && m.consecutiveFailures >= s.maxFailures && !s.disabled[pluginName] {
		s.disabled[pluginName] = true
		autoDisabled = true
	}
	callback := s.onAutoDisable
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer.RecordPluginInvocation(pluginName, hookName, result.ExecutionTime, result.Err != nil)
		if result.TimedOut {
			observer.RecordPluginTimeout(pluginName)
		}
		if autoDisabled {
			observer.RecordPluginAutoDisable(pluginName)
		}
	}

	if result.Err != nil {
		s.logger.Warn("hook execution failed",
			"plugin", pluginName,
			"hook", hookName,
			"timed_out", result.TimedOut,
			"error", result.Err)
	}
	if autoDisabled {
		s.logger.Error("plugin auto-disabled after repeated failures",
			"plugin", pluginName,
			"max_consecutive_failures", s.maxFailures)
		if callback != nil {
			callback(pluginName)
		}
	}
}
