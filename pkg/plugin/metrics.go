package plugin

import (
	"time"
)

// pluginMetrics accumulates per-plugin execution counters. Owned by the
// Sandbox, which serializes access.
type pluginMetrics struct {
	invocations   int64
	errors        int64
	timeouts      int64
	shortCircuits int64

	consecutiveFailures int

	totalDuration time.Duration
	minDuration   time.Duration
	maxDuration   time.Duration

	lastError   string
	lastErrorAt time.Time
}

func (m *pluginMetrics) record(d time.Duration, execErr error, timedOut bool) {
	m.invocations++
	m.totalDuration += d
	if m.minDuration == 0 || d < m.minDuration {
		m.minDuration = d
	}
	if d > m.maxDuration {
		m.maxDuration = d
	}

	if execErr == nil {
		m.consecutiveFailures = 0
		return
	}

	m.errors++
	if timedOut {
		m.timeouts++
	}
	m.consecutiveFailures++
	m.lastError = execErr.Error()
	m.lastErrorAt = time.Now()
}

// PluginStats is the exported per-plugin metrics shape.
type PluginStats struct {
	Invocations        int64   `json:"invocations"`
	Errors             int64   `json:"errors"`
	Timeouts           int64   `json:"timeouts"`
	ShortCircuits      int64   `json:"shortCircuits"`
	MinExecutionTimeMs float64 `json:"minExecutionTimeMs"`
	AvgExecutionTimeMs float64 `json:"avgExecutionTimeMs"`
	MaxExecutionTimeMs float64 `json:"maxExecutionTimeMs"`
	LastError          string  `json:"lastError,omitempty"`
	LastErrorAt        string  `json:"lastErrorAt,omitempty"`
}

// MetricsReport is the aggregate metrics export.
type MetricsReport struct {
	TotalPlugins     int                    `json:"totalPlugins"`
	EnabledPlugins   int                    `json:"enabledPlugins"`
	TotalInvocations int64                  `json:"totalInvocations"`
	TotalErrors      int64                  `json:"totalErrors"`
	TotalTimeouts    int64                  `json:"totalTimeouts"`
	Plugins          map[string]PluginStats `json:"plugins"`
}

func (m *pluginMetrics) snapshot() PluginStats {
	s := PluginStats{
		Invocations:   m.invocations,
		Errors:        m.errors,
		Timeouts:      m.timeouts,
		ShortCircuits: m.shortCircuits,
		LastError:     m.lastError,
	}
	if m.invocations > 0 {
		s.MinExecutionTimeMs = durationMs(m.minDuration)
		s.AvgExecutionTimeMs = durationMs(m.totalDuration) / float64(m.invocations)
		s.MaxExecutionTimeMs = durationMs(m.maxDuration)
	}
	if !m.lastErrorAt.IsZero() {
		s.LastErrorAt = m.lastErrorAt.UTC().Format(time.RFC3339)
	}
	return s
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
