package metrics

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"umbra-hq/umbra/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	cfg := &config.MetricsConfig{Enabled: true}
	return NewCollector(cfg, prometheus.NewRegistry())
}

// gather renders the registry in exposition format for assertions.
func gather(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}

func TestCollectorDefaults(t *testing.T) {
	c := newTestCollector(t)
	if c.config.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("namespace = %q", c.config.Namespace)
	}
	if c.config.Subsystem != config.DefaultMetricsSubsystem {
		t.Errorf("subsystem = %q", c.config.Subsystem)
	}
	if len(c.config.StageDurationBuckets) == 0 {
		t.Error("stage duration buckets not defaulted")
	}
}

func TestPipelineMetricsExposition(t *testing.T) {
	c := newTestCollector(t)

	c.RecordDocument("redacted", 12*time.Millisecond, 5, 4)
	c.RecordStage("detect", 3*time.Millisecond)
	c.RecordShortCircuit("allowlist")

	out := gather(t, c)
	for _, want := range []string{
		`umbra_core_documents_total{outcome="redacted"} 1`,
		`umbra_core_spans_redacted_total 4`,
		`umbra_core_short_circuits_total{plugin="allowlist"} 1`,
		`umbra_core_stage_duration_seconds_count{stage="detect"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestPluginMetricsExposition(t *testing.T) {
	c := newTestCollector(t)

	c.RecordPluginInvocation("scrubber", "preProcess", time.Millisecond, false)
	c.RecordPluginInvocation("scrubber", "preProcess", time.Millisecond, true)
	c.RecordPluginTimeout("scrubber")
	c.RecordPluginAutoDisable("scrubber")
	c.SetEnabledPlugins(3)

	out := gather(t, c)
	for _, want := range []string{
		`umbra_core_plugin_invocations_total{hook="preProcess",plugin="scrubber"} 2`,
		`umbra_core_plugin_errors_total{hook="preProcess",plugin="scrubber"} 1`,
		`umbra_core_plugin_timeouts_total{plugin="scrubber"} 1`,
		`umbra_core_plugin_auto_disables_total{plugin="scrubber"} 1`,
		`umbra_core_plugins_enabled 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestResilienceMetricsExposition(t *testing.T) {
	c := newTestCollector(t)

	c.RecordBreakerTransition("pipeline", "closed", "open", BreakerStateOpen)
	c.RecordBreakerRejection("pipeline")
	c.UpdateQueue("stream", 42, true)
	c.RecordQueueDrop("stream")
	c.RecordSupervisorRestart("worker-1")

	out := gather(t, c)
	for _, want := range []string{
		`umbra_core_breaker_state{breaker="pipeline"} 1`,
		`umbra_core_breaker_transitions_total{breaker="pipeline",from="closed",to="open"} 1`,
		`umbra_core_breaker_rejections_total{breaker="pipeline"} 1`,
		`umbra_core_queue_depth{queue="stream"} 42`,
		`umbra_core_queue_paused{queue="stream"} 1`,
		`umbra_core_queue_dropped_total{queue="stream"} 1`,
		`umbra_core_supervisor_restarts_total{child="worker-1"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestAuditMetricsExposition(t *testing.T) {
	c := newTestCollector(t)

	c.RecordAuditWrite("sqlite", false)
	c.RecordAuditWrite("sqlite", true)
	c.RecordAuditPruned(17)

	out := gather(t, c)
	for _, want := range []string{
		`umbra_core_audit_records_total{backend="sqlite"} 2`,
		`umbra_core_audit_write_errors_total{backend="sqlite"} 1`,
		`umbra_core_audit_pruned_total 17`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: false}
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.RecordDocument("redacted", time.Millisecond, 1, 1)
	c.RecordPluginTimeout("scrubber")

	out := gather(t, c)
	if strings.Contains(out, `outcome="redacted"`) {
		t.Error("disabled collector should not record")
	}
}

func TestPluginLabelCardinalityLimit(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	c := NewCollector(cfg, prometheus.NewRegistry())
	c.pluginNames = NewCardinalityLimiter(2)

	c.RecordPluginTimeout("a")
	c.RecordPluginTimeout("b")
	c.RecordPluginTimeout("c")
	c.RecordPluginTimeout("d")

	out := gather(t, c)
	if !strings.Contains(out, `umbra_core_plugin_timeouts_total{plugin="other"} 2`) {
		t.Errorf("overflow plugins should aggregate into other:\n%s", out)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(3)

	for i := 0; i < 3; i++ {
		if !cl.Allow(fmt.Sprintf("v%d", i)) {
			t.Fatalf("value %d should be admitted", i)
		}
	}
	if cl.Allow("overflow") {
		t.Error("value past the limit should be rejected")
	}
	if !cl.Allow("v0") {
		t.Error("known value should stay admitted")
	}
	if cl.Count() != 3 {
		t.Errorf("count = %d", cl.Count())
	}
}
