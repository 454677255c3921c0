package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/resilience"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProcessor echoes documents back as results, optionally failing for
// marked documents.
type stubProcessor struct {
	mu        sync.Mutex
	processed []string
	fail      func(doc *plugin.Document) error
	delay     time.Duration
}

func (p *stubProcessor) Process(ctx context.Context, doc *plugin.Document) (*plugin.Result, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.fail != nil {
		if err := p.fail(doc); err != nil {
			return nil, err
		}
	}
	p.mu.Lock()
	p.processed = append(p.processed, doc.ID)
	p.mu.Unlock()
	return &plugin.Result{
		DocumentID:   doc.ID,
		OriginalText: doc.Text,
		RedactedText: doc.Text,
	}, nil
}

func (p *stubProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func newTestRunner(t *testing.T, cfg Config, processor Processor) *Runner {
	t.Helper()
	runner, err := NewRunner(cfg, processor, nil, testLogger())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner
}

func collectOutputs(t *testing.T, runner *Runner, n int) []Output {
	t.Helper()
	outputs := make([]Output, 0, n)
	timeout := time.After(5 * time.Second)
	for len(outputs) < n {
		select {
		case out := <-runner.Results():
			outputs = append(outputs, out)
		case <-timeout:
			t.Fatalf("timed out waiting for outputs, got %d of %d", len(outputs), n)
		}
	}
	return outputs
}

func TestRunnerProcessesSubmittedDocuments(t *testing.T) {
	processor := &stubProcessor{}
	runner := newTestRunner(t, Config{Workers: 2}, processor)

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	for i := 0; i < 5; i++ {
		doc := &plugin.Document{ID: fmt.Sprintf("doc-%d", i), Text: "text"}
		if !runner.Submit(doc) {
			t.Fatalf("Submit(%s) = false", doc.ID)
		}
	}

	outputs := collectOutputs(t, runner, 5)
	for _, out := range outputs {
		if out.Err != nil {
			t.Errorf("output %s error = %v", out.DocumentID, out.Err)
		}
		if out.Result == nil {
			t.Errorf("output %s has nil result", out.DocumentID)
		}
	}
	if got := processor.count(); got != 5 {
		t.Errorf("processed %d documents, want 5", got)
	}
}

func TestRunnerDeliversProcessingErrors(t *testing.T) {
	processor := &stubProcessor{
		fail: func(doc *plugin.Document) error {
			if doc.ID == "bad" {
				return errors.New("malformed document")
			}
			return nil
		},
	}
	runner := newTestRunner(t, Config{Workers: 1}, processor)

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	runner.Submit(&plugin.Document{ID: "bad", Text: "x"})
	runner.Submit(&plugin.Document{ID: "good", Text: "x"})

	outputs := collectOutputs(t, runner, 2)
	byID := map[string]Output{}
	for _, out := range outputs {
		byID[out.DocumentID] = out
	}

	if byID["bad"].Err == nil {
		t.Error("bad document should carry an error")
	}
	if byID["bad"].Result != nil {
		t.Error("failed output should have nil result")
	}
	if byID["good"].Err != nil {
		t.Errorf("good document error = %v", byID["good"].Err)
	}
}

func TestRunnerCountsBreakerRejections(t *testing.T) {
	processor := &stubProcessor{
		fail: func(doc *plugin.Document) error { return errors.New("always down") },
	}
	runner := newTestRunner(t, Config{
		Workers: 1,
		Breaker: resilience.BreakerConfig{
			FailureThreshold: 2,
			SuccessThreshold: 1,
			ResetTimeout:     time.Minute,
		},
	}, processor)

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	for i := 0; i < 5; i++ {
		runner.Submit(&plugin.Document{ID: fmt.Sprintf("doc-%d", i), Text: "x"})
	}

	outputs := collectOutputs(t, runner, 5)
	var rejected int
	for _, out := range outputs {
		if errors.Is(out.Err, resilience.ErrCircuitOpen) {
			rejected++
		}
	}
	if rejected != 3 {
		t.Errorf("breaker rejections in outputs = %d, want 3", rejected)
	}

	stats := runner.Stats()
	if stats.Rejections != 3 {
		t.Errorf("Stats().Rejections = %d, want 3", stats.Rejections)
	}
	if stats.Breaker.State != resilience.StateOpen {
		t.Errorf("breaker state = %s, want open", stats.Breaker.State)
	}
}

func TestRunnerCountsQueueDrops(t *testing.T) {
	block := make(chan struct{})
	processor := &stubProcessor{
		fail: func(doc *plugin.Document) error {
			<-block
			return nil
		},
	}
	runner := newTestRunner(t, Config{
		Workers: 1,
		Queue: resilience.QueueConfig{
			HighWaterMark: 2,
			LowWaterMark:  1,
			MaxSize:       2,
		},
	}, processor)

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		close(block)
		runner.Stop()
	}()

	// One document occupies the worker; two fill the queue; the rest drop.
	for i := 0; i < 6; i++ {
		runner.Submit(&plugin.Document{ID: fmt.Sprintf("doc-%d", i), Text: "x"})
	}

	deadline := time.After(2 * time.Second)
	for runner.Stats().Drops == 0 {
		select {
		case <-deadline:
			t.Fatal("no drops counted")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if drops := runner.Stats().Drops; drops < 3 {
		t.Errorf("Stats().Drops = %d, want at least 3", drops)
	}
}

func TestRunnerPauseResumeObserverOrder(t *testing.T) {
	runner := newTestRunner(t, Config{
		Workers: 1,
		Queue: resilience.QueueConfig{
			HighWaterMark: 2,
			LowWaterMark:  1,
			MaxSize:       10,
		},
	}, &stubProcessor{})

	var mu sync.Mutex
	var calls []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		runner.OnPause(func() {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
		})
	}

	// Saturate without starting workers so nothing pulls concurrently.
	for i := 0; i < 3; i++ {
		runner.Submit(&plugin.Document{ID: fmt.Sprintf("doc-%d", i), Text: "x"})
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	if len(calls) != len(want) {
		t.Fatalf("pause observers ran %d times, want %d", len(calls), len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("observer order[%d] = %s, want %s", i, calls[i], want[i])
		}
	}
}

func TestRunnerStopClosesResults(t *testing.T) {
	runner := newTestRunner(t, Config{Workers: 2}, &stubProcessor{})

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runner.Submit(&plugin.Document{ID: "doc-1", Text: "x"})
	collectOutputs(t, runner, 1)

	runner.Stop()

	select {
	case _, ok := <-runner.Results():
		if ok {
			t.Error("Results() should be closed after Stop")
		}
	case <-time.After(time.Second):
		t.Error("Results() not closed after Stop")
	}

	// Stop is idempotent.
	runner.Stop()
}

func TestRunnerDoubleStart(t *testing.T) {
	runner := newTestRunner(t, Config{Workers: 1}, &stubProcessor{})

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	if err := runner.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestNewRunnerValidation(t *testing.T) {
	if _, err := NewRunner(Config{}, nil, nil, testLogger()); err == nil {
		t.Error("NewRunner(nil processor) should fail")
	}
	if _, err := NewRunner(Config{Workers: -1}, &stubProcessor{}, nil, testLogger()); err == nil {
		t.Error("NewRunner(negative workers) should fail")
	}
	if _, err := NewRunner(Config{
		Queue: resilience.QueueConfig{HighWaterMark: 10, LowWaterMark: 20, MaxSize: 30},
	}, &stubProcessor{}, nil, testLogger()); err == nil {
		t.Error("NewRunner(inverted watermarks) should fail")
	}
}
