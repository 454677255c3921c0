package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSandboxExecuteSuccess(t *testing.T) {
	sb := NewSandbox(3, testLogger())

	res := sb.Execute(context.Background(), "p", "preProcess", time.Second, func(ctx context.Context) (any, error) {
		return "value", nil
	})
	if !res.Success {
		t.Fatalf("Success = false, err = %v", res.Err)
	}
	if res.Value != "value" {
		t.Errorf("Value = %v, want value", res.Value)
	}
	if res.TimedOut || res.PluginDisabled {
		t.Errorf("TimedOut=%v PluginDisabled=%v, want false/false", res.TimedOut, res.PluginDisabled)
	}

	stats := sb.Stats("p")
	if stats.Invocations != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 1 invocation, 0 errors", stats)
	}
}

func TestSandboxTimeoutThenAutoDisable(t *testing.T) {
	sb := NewSandbox(3, testLogger())
	ctx := context.Background()

	var invocations atomic.Int64
	slow := func(hookCtx context.Context) (any, error) {
		invocations.Add(1)
		select {
		case <-time.After(200 * time.Millisecond):
			return "late", nil
		case <-hookCtx.Done():
			return nil, hookCtx.Err()
		}
	}

	// Three consecutive 50ms-timeout executions of a 200ms hook.
	for i := 0; i < 3; i++ {
		res := sb.Execute(ctx, "slowpoke", "preProcess", 50*time.Millisecond, slow)
		if res.Success {
			t.Fatalf("execution %d succeeded, want timeout", i)
		}
		if !res.TimedOut {
			t.Fatalf("execution %d: TimedOut = false", i)
		}
		if !errors.Is(res.Err, ErrPluginTimeout) {
			t.Fatalf("execution %d: err = %v, want ErrPluginTimeout", i, res.Err)
		}
	}

	if !sb.Disabled("slowpoke") {
		t.Fatal("plugin not auto-disabled after 3 consecutive timeouts")
	}

	// Subsequent calls short-circuit without invoking the hook.
	before := invocations.Load()
	res := sb.Execute(ctx, "slowpoke", "preProcess", 50*time.Millisecond, slow)
	if !res.PluginDisabled {
		t.Fatal("PluginDisabled = false for disabled plugin")
	}
	if res.Success {
		t.Fatal("disabled execution reported success")
	}
	if invocations.Load() != before {
		t.Fatal("hook was invoked despite the plugin being disabled")
	}

	stats := sb.Stats("slowpoke")
	if stats.Timeouts != 3 {
		t.Errorf("Timeouts = %d, want 3", stats.Timeouts)
	}
}

func TestSandboxSuccessResetsFailureStreak(t *testing.T) {
	sb := NewSandbox(3, testLogger())
	ctx := context.Background()

	fail := func(ctx context.Context) (any, error) { return nil, errors.New("nope") }
	ok := func(ctx context.Context) (any, error) { return nil, nil }

	sb.Execute(ctx, "flaky", "h", time.Second, fail)
	sb.Execute(ctx, "flaky", "h", time.Second, fail)
	sb.Execute(ctx, "flaky", "h", time.Second, ok)
	sb.Execute(ctx, "flaky", "h", time.Second, fail)
	sb.Execute(ctx, "flaky", "h", time.Second, fail)

	if sb.Disabled("flaky") {
		t.Fatal("plugin disabled although the failure streak was broken")
	}
}

func TestSandboxEnableResetsCounter(t *testing.T) {
	sb := NewSandbox(2, testLogger())
	ctx := context.Background()
	fail := func(ctx context.Context) (any, error) { return nil, errors.New("nope") }

	sb.Execute(ctx, "p", "h", time.Second, fail)
	sb.Execute(ctx, "p", "h", time.Second, fail)
	if !sb.Disabled("p") {
		t.Fatal("plugin should be disabled")
	}

	sb.Enable("p")
	if sb.Disabled("p") {
		t.Fatal("plugin still disabled after Enable")
	}

	// The streak restarts from zero: one failure does not re-disable.
	sb.Execute(ctx, "p", "h", time.Second, fail)
	if sb.Disabled("p") {
		t.Fatal("plugin re-disabled after a single post-enable failure")
	}
}

func TestSandboxAutoDisableCallback(t *testing.T) {
	sb := NewSandbox(1, testLogger())

	var gotName string
	sb.OnAutoDisable(func(name string) { gotName = name })

	sb.Execute(context.Background(), "broken", "h", time.Second, func(ctx context.Context) (any, error) {
		return nil, errors.New("nope")
	})
	if gotName != "broken" {
		t.Fatalf("auto-disable callback got %q, want broken", gotName)
	}
}

func TestSandboxRecoversPanic(t *testing.T) {
	sb := NewSandbox(3, testLogger())

	res := sb.Execute(context.Background(), "p", "h", time.Second, func(ctx context.Context) (any, error) {
		panic("kaboom")
	})
	if res.Success {
		t.Fatal("panicking hook reported success")
	}

	var execErr *PluginExecutionError
	if !errors.As(res.Err, &execErr) {
		t.Fatalf("err = %T, want PluginExecutionError", res.Err)
	}
}

func TestSandboxReport(t *testing.T) {
	sb := NewSandbox(3, testLogger())
	ctx := context.Background()

	sb.Execute(ctx, "a", "h", time.Second, func(ctx context.Context) (any, error) { return nil, nil })
	sb.Execute(ctx, "a", "h", time.Second, func(ctx context.Context) (any, error) { return nil, errors.New("x") })
	sb.Execute(ctx, "b", "h", time.Second, func(ctx context.Context) (any, error) { return nil, nil })
	sb.RecordShortCircuit("b")

	report := sb.Report()
	if report.TotalInvocations != 3 {
		t.Errorf("TotalInvocations = %d, want 3", report.TotalInvocations)
	}
	if report.TotalErrors != 1 {
		t.Errorf("TotalErrors = %d, want 1", report.TotalErrors)
	}
	if report.Plugins["b"].ShortCircuits != 1 {
		t.Errorf("b.ShortCircuits = %d, want 1", report.Plugins["b"].ShortCircuits)
	}
	if report.Plugins["a"].LastError == "" {
		t.Error("a.LastError empty, want recorded error")
	}
	if report.Plugins["a"].AvgExecutionTimeMs < 0 {
		t.Error("negative average execution time")
	}
}

type recordingObserver struct {
	invocations int
	failures    int
	timeouts    int
	disables    []string
}

func (o *recordingObserver) RecordPluginInvocation(plugin, hook string, duration time.Duration, failed bool) {
	o.invocations++
	if failed {
		o.failures++
	}
}

func (o *recordingObserver) RecordPluginTimeout(plugin string) { o.timeouts++ }

func (o *recordingObserver) RecordPluginAutoDisable(plugin string) {
	o.disables = append(o.disables, plugin)
}

func TestSandboxObserver(t *testing.T) {
	sb := NewSandbox(2, testLogger())
	ctx := context.Background()

	obs := &recordingObserver{}
	sb.SetObserver(obs)

	sb.Execute(ctx, "p", "h", time.Second, func(ctx context.Context) (any, error) { return nil, nil })
	sb.Execute(ctx, "p", "h", time.Second, func(ctx context.Context) (any, error) { return nil, errors.New("x") })
	sb.Execute(ctx, "p", "h", 20*time.Millisecond, func(hookCtx context.Context) (any, error) {
		<-hookCtx.Done()
		return nil, hookCtx.Err()
	})

	if obs.invocations != 3 {
		t.Errorf("invocations = %d, want 3", obs.invocations)
	}
	if obs.failures != 2 {
		t.Errorf("failures = %d, want 2", obs.failures)
	}
	if obs.timeouts != 1 {
		t.Errorf("timeouts = %d, want 1", obs.timeouts)
	}
	if len(obs.disables) != 1 || obs.disables[0] != "p" {
		t.Errorf("disables = %v, want [p]", obs.disables)
	}

	// A disabled plugin's short-circuited rejection is not an invocation.
	sb.SetObserver(obs)
	sb.Execute(ctx, "p", "h", time.Second, func(ctx context.Context) (any, error) { return nil, nil })
	if obs.invocations != 3 {
		t.Errorf("invocations after disable = %d, want 3", obs.invocations)
	}
}
