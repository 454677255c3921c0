package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/resilience"
	"umbra-hq/umbra/pkg/telemetry/metrics"
)

const queueName = "stream"

// Processor runs one document through the pipeline. *pipeline.Pipeline
// satisfies this.
type Processor interface {
	Process(ctx context.Context, doc *plugin.Document) (*plugin.Result, error)
}

// Config configures the streaming runner.
type Config struct {
	// Workers is the number of supervised pipeline workers.
	// Default: 4
	Workers int `yaml:"workers"`

	// Queue contains backpressure queue watermarks and capacity.
	Queue resilience.QueueConfig `yaml:"queue"`

	// Breaker guards every pipeline pass.
	Breaker resilience.BreakerConfig `yaml:"breaker"`

	// Supervisor contains worker supervision settings.
	Supervisor resilience.SupervisorConfig `yaml:"supervisor"`
}

// DefaultWorkers is the worker count used when Config.Workers is zero.
const DefaultWorkers = 4

// Output is one finished document delivered on the results channel.
// Exactly one of Result and Err is set.
type Output struct {
	DocumentID string
	Result     *plugin.Result
	Err        error
}

// Stats is a point-in-time snapshot of runner counters.
type Stats struct {
	Queue      resilience.QueueStats   `json:"queue"`
	Breaker    resilience.BreakerStats `json:"breaker"`
	Drops      int64                   `json:"drops"`
	Rejections int64                   `json:"rejections"`
}

// Runner pushes documents through a backpressure queue to supervised
// workers. Each worker wraps its pipeline pass in the shared circuit
// breaker and delivers on the output channel. Queue drops and breaker
// rejections are counted, never raised to the producer.
type Runner struct {
	config     Config
	processor  Processor
	queue      *resilience.BackpressureQueue[*plugin.Document]
	breaker    *resilience.CircuitBreaker
	supervisor *resilience.Supervisor
	collector  *metrics.Collector
	logger     *slog.Logger

	out chan Output

	// Pause/resume observers run in registration order.
	obsMu    sync.Mutex
	onPause  []func()
	onResume []func()

	drops      atomic.Int64
	rejections atomic.Int64

	// lastBreakerState backs the breaker transition metric.
	stateMu   sync.Mutex
	lastState resilience.CircuitState

	started    atomic.Bool
	stopped    atomic.Bool
	cancel     context.CancelFunc
	stopEvents chan struct{}
	eventWG    sync.WaitGroup
}

// NewRunner creates a Runner over the given processor. The collector is
// optional.
func NewRunner(cfg Config, processor Processor, collector *metrics.Collector, logger *slog.Logger) (*Runner, error) {
	if processor == nil {
		return nil, fmt.Errorf("runner requires a processor")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "stream")

	queue, err := resilience.NewBackpressureQueue[*plugin.Document](cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("stream queue: %w", err)
	}

	r := &Runner{
		config:     cfg,
		processor:  processor,
		queue:      queue,
		breaker:    resilience.NewCircuitBreaker("stream", cfg.Breaker, logger),
		supervisor: resilience.NewSupervisor(cfg.Supervisor, logger),
		collector:  collector,
		logger:     logger,
		out:        make(chan Output, cfg.Workers),
		stopEvents: make(chan struct{}),
		lastState:  resilience.StateClosed,
	}

	queue.OnPause(func() {
		r.updateQueueMetrics()
		r.obsMu.Lock()
		observers := r.onPause
		r.obsMu.Unlock()
		for _, fn := range observers {
			fn()
		}
	})
	queue.OnResume(func() {
		r.updateQueueMetrics()
		r.obsMu.Lock()
		observers := r.onResume
		r.obsMu.Unlock()
		for _, fn := range observers {
			fn()
		}
	})

	return r, nil
}

// OnPause registers a saturation observer. Observers run in registration
// order when the queue crosses its high watermark.
func (r *Runner) OnPause(fn func()) {
	r.obsMu.Lock()
	r.onPause = append(r.onPause, fn)
	r.obsMu.Unlock()
}

// OnResume registers a recovery observer.
func (r *Runner) OnResume(fn func()) {
	r.obsMu.Lock()
	r.onResume = append(r.onResume, fn)
	r.obsMu.Unlock()
}

// Start launches the supervised workers. It returns once they are
// running; results arrive on Results.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("runner already started")
	}

	ctx, r.cancel = context.WithCancel(ctx)

	for i := 0; i < r.config.Workers; i++ {
		id := fmt.Sprintf("worker-%d", i)
		err := r.supervisor.AddChild(resilience.ChildSpec{
			ID:      id,
			Start:   r.workerLoop,
			Restart: resilience.RestartPermanent,
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", id, err)
		}
	}

	r.eventWG.Add(1)
	go r.consumeEvents()

	if err := r.supervisor.Start(ctx); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	r.logger.Info("streaming runner started", "workers", r.config.Workers)
	return nil
}

// Submit enqueues a document. It returns false when the document was
// dropped (queue full or runner stopped) or when the queue asks the
// producer to back off; a backed-off document is still processed.
func (r *Runner) Submit(doc *plugin.Document) bool {
	before := r.queue.Stats().TotalDropped
	accepted := r.queue.Push(doc)
	if r.queue.Stats().TotalDropped > before {
		r.drops.Add(1)
		if r.collector != nil {
			r.collector.RecordQueueDrop(queueName)
		}
		r.logger.Warn("document dropped, queue full", "document_id", doc.ID)
	}
	r.updateQueueMetrics()
	return accepted
}

// Results returns the output channel. It is closed by Stop after the
// workers exit.
func (r *Runner) Results() <-chan Output {
	return r.out
}

// Stats returns a snapshot of the runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Queue:      r.queue.Stats(),
		Breaker:    r.breaker.Stats(),
		Drops:      r.drops.Load(),
		Rejections: r.rejections.Load(),
	}
}

// Breaker exposes the pass breaker for health checks.
func (r *Runner) Breaker() *resilience.CircuitBreaker {
	return r.breaker
}

// Queue exposes the document queue for health checks.
func (r *Runner) Queue() *resilience.BackpressureQueue[*plugin.Document] {
	return r.queue
}

// Stop shuts the runner down: workers stop pulling, the queue closes,
// and the results channel is closed. Buffered documents are discarded.
func (r *Runner) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}

	// Stop workers before closing the queue so permanent children are
	// not restarted into a closed queue.
	r.supervisor.Stop()
	if r.cancel != nil {
		r.cancel()
	}
	r.queue.Close()
	r.queue.Clear()
	close(r.stopEvents)
	r.eventWG.Wait()
	close(r.out)

	r.logger.Info("streaming runner stopped",
		"drops", r.drops.Load(),
		"rejections", r.rejections.Load(),
	)
}

// workerLoop is the supervised child body: pull, process under the
// breaker, deliver.
func (r *Runner) workerLoop(ctx context.Context) error {
	for {
		doc, err := r.queue.PullWait(ctx)
		if err != nil {
			// Cancellation and queue closure are normal exits; anything
			// else escalates to the supervisor.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, resilience.ErrQueueClosed) {
				return nil
			}
			return err
		}
		r.updateQueueMetrics()

		var result *plugin.Result
		execErr := r.breaker.Execute(ctx, func(ctx context.Context) error {
			var perr error
			result, perr = r.processor.Process(ctx, doc)
			return perr
		})
		r.observeBreakerState()

		if errors.Is(execErr, resilience.ErrCircuitOpen) {
			r.rejections.Add(1)
			if r.collector != nil {
				r.collector.RecordBreakerRejection("stream")
			}
		}

		output := Output{DocumentID: doc.ID, Result: result, Err: execErr}
		if execErr != nil {
			output.Result = nil
		}

		select {
		case r.out <- output:
		case <-ctx.Done():
			return nil
		}
	}
}

// consumeEvents counts supervisor restarts until Stop signals it.
func (r *Runner) consumeEvents() {
	defer r.eventWG.Done()
	for {
		select {
		case <-r.stopEvents:
			return
		case ev := <-r.supervisor.Events():
			switch ev.Type {
			case resilience.EventChildRestarted:
				if r.collector != nil {
					r.collector.RecordSupervisorRestart(ev.ChildID)
				}
				r.logger.Warn("worker restarted", "worker", ev.ChildID, "error", ev.Err)
			case resilience.EventRestartBudgetExceeded:
				r.logger.Error("worker abandoned, restart budget exceeded",
					"worker", ev.ChildID, "error", ev.Err)
			}
		}
	}
}

func (r *Runner) updateQueueMetrics() {
	if r.collector == nil {
		return
	}
	stats := r.queue.Stats()
	r.collector.UpdateQueue(queueName, stats.Size, stats.Paused)
}

// observeBreakerState records a transition metric when the breaker state
// changed since the last observation.
func (r *Runner) observeBreakerState() {
	if r.collector == nil {
		return
	}
	state := r.breaker.State()

	r.stateMu.Lock()
	last := r.lastState
	if state != last {
		r.lastState = state
	}
	r.stateMu.Unlock()

	if state == last {
		return
	}
	r.collector.RecordBreakerTransition("stream", string(last), string(state), breakerStateValue(state))
}

func breakerStateValue(state resilience.CircuitState) int {
	switch state {
	case resilience.StateOpen:
		return metrics.BreakerStateOpen
	case resilience.StateHalfOpen:
		return metrics.BreakerStateHalfOpen
	default:
		return metrics.BreakerStateClosed
	}
}
