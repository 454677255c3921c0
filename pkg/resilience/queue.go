package resilience

import (
	"context"
	"fmt"
	"sync"
)

// QueueConfig configures a BackpressureQueue.
type QueueConfig struct {
	// HighWaterMark is the size at which the pause signal fires.
	// Default: 1000
	HighWaterMark int `yaml:"high_water_mark"`

	// LowWaterMark is the size at which the resume signal fires. Must be
	// strictly less than HighWaterMark.
	// Default: 100
	LowWaterMark int `yaml:"low_water_mark"`

	// MaxSize is the hard ceiling; pushes beyond it are dropped and
	// counted.
	// Default: 2 * HighWaterMark
	MaxSize int `yaml:"max_size"`
}

// DefaultQueueConfig returns the default queue configuration.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		HighWaterMark: 1000,
		LowWaterMark:  100,
		MaxSize:       2000,
	}
}

// Validate checks watermark ordering.
func (c QueueConfig) Validate() error {
	if c.LowWaterMark >= c.HighWaterMark {
		return fmt.Errorf("low watermark %d must be strictly less than high watermark %d",
			c.LowWaterMark, c.HighWaterMark)
	}
	if c.MaxSize < c.HighWaterMark {
		return fmt.Errorf("max size %d must be at least the high watermark %d",
			c.MaxSize, c.HighWaterMark)
	}
	return nil
}

// QueueStats is a point-in-time snapshot of queue counters.
type QueueStats struct {
	Size         int   `json:"size"`
	Paused       bool  `json:"paused"`
	TotalPushed  int64 `json:"totalPushed"`
	TotalPulled  int64 `json:"totalPulled"`
	TotalDropped int64 `json:"totalDropped"`
	PauseCount   int64 `json:"pauseCount"`
	ResumeCount  int64 `json:"resumeCount"`
}

// BackpressureQueue is a bounded FIFO buffer with watermark hysteresis.
// The pause signal fires only when size crosses HighWaterMark upward and
// resume only when it crosses LowWaterMark downward, so observers see one
// signal per saturation episode instead of one per item. Safe for
// concurrent use.
type BackpressureQueue[T any] struct {
	config QueueConfig

	mu     sync.Mutex
	items  []T
	paused bool
	closed bool

	// signal wakes blocked PullWait callers on push or close.
	signal chan struct{}

	// observers receive pause/resume notifications in registration order.
	onPause  []func()
	onResume []func()

	totalPushed  int64
	totalPulled  int64
	totalDropped int64
	pauseCount   int64
	resumeCount  int64
}

// NewBackpressureQueue creates a queue with the given configuration.
func NewBackpressureQueue[T any](cfg QueueConfig) (*BackpressureQueue[T], error) {
	if cfg.HighWaterMark <= 0 {
		cfg = DefaultQueueConfig()
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 2 * cfg.HighWaterMark
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BackpressureQueue[T]{
		config: cfg,
		signal: make(chan struct{}, 1),
	}, nil
}

// OnPause registers a pause observer. Observers run synchronously in
// registration order, outside the queue lock.
func (q *BackpressureQueue[T]) OnPause(fn func()) {
	q.mu.Lock()
	q.onPause = append(q.onPause, fn)
	q.mu.Unlock()
}

// OnResume registers a resume observer.
func (q *BackpressureQueue[T]) OnResume(fn func()) {
	q.mu.Lock()
	q.onResume = append(q.onResume, fn)
	q.mu.Unlock()
}

// Push appends an item. It returns false when the item was dropped (queue
// at MaxSize) or when the queue is in its paused regime (producer should
// back off). The item is still enqueued in the paused case; only a
// MaxSize rejection discards it. The pause observers fire once, on the
// push that crosses the high watermark, not on every paused push.
func (q *BackpressureQueue[T]) Push(item T) bool {
	q.mu.Lock()

	if q.closed || len(q.items) >= q.config.MaxSize {
		q.totalDropped++
		q.mu.Unlock()
		return false
	}

	q.items = append(q.items, item)
	q.totalPushed++

	var firePause bool
	if !q.paused && len(q.items) >= q.config.HighWaterMark {
		q.paused = true
		q.pauseCount++
		firePause = true
	}
	accepted := !q.paused
	observers := q.onPause
	q.mu.Unlock()

	// Wake one blocked consumer.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	if firePause {
		for _, fn := range observers {
			fn()
		}
	}
	return accepted
}

// Pull removes and returns the head. ok is false when the queue is empty.
func (q *BackpressureQueue[T]) Pull() (item T, ok bool) {
	q.mu.Lock()

	if len(q.items) == 0 {
		q.mu.Unlock()
		return item, false
	}

	item = q.items[0]
	q.items = q.items[1:]
	q.totalPulled++

	var fireResume bool
	if q.paused && len(q.items) <= q.config.LowWaterMark {
		q.paused = false
		q.resumeCount++
		fireResume = true
	}
	observers := q.onResume
	q.mu.Unlock()

	if fireResume {
		for _, fn := range observers {
			fn()
		}
	}
	return item, true
}

// PullWait removes and returns the head, blocking until an item arrives,
// the queue is closed and drained, or ctx is cancelled. This is the
// cooperative consumption mode: a pull loop blocks here instead of
// polling.
func (q *BackpressureQueue[T]) PullWait(ctx context.Context) (T, error) {
	for {
		if item, ok := q.Pull(); ok {
			return item, nil
		}

		q.mu.Lock()
		closed := q.closed
		empty := len(q.items) == 0
		q.mu.Unlock()
		if closed && empty {
			var zero T
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.signal:
		}
	}
}

// Close marks the queue as accepting no more items. Blocked PullWait
// callers drain the remainder and then receive ErrQueueClosed.
func (q *BackpressureQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Drain removes and returns all buffered items and unconditionally
// resumes.
func (q *BackpressureQueue[T]) Drain() []T {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.totalPulled += int64(len(items))
	fireResume := q.paused
	if fireResume {
		q.paused = false
		q.resumeCount++
	}
	observers := q.onResume
	q.mu.Unlock()

	if fireResume {
		for _, fn := range observers {
			fn()
		}
	}
	return items
}

// Clear discards all buffered items and unconditionally resumes.
func (q *BackpressureQueue[T]) Clear() {
	q.mu.Lock()
	q.items = nil
	fireResume := q.paused
	if fireResume {
		q.paused = false
		q.resumeCount++
	}
	observers := q.onResume
	q.mu.Unlock()

	if fireResume {
		for _, fn := range observers {
			fn()
		}
	}
}

// Size returns the number of buffered items.
func (q *BackpressureQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Paused reports whether the queue is in its paused regime.
func (q *BackpressureQueue[T]) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Stats returns a snapshot of the queue counters.
func (q *BackpressureQueue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Size:         len(q.items),
		Paused:       q.paused,
		TotalPushed:  q.totalPushed,
		TotalPulled:  q.totalPulled,
		TotalDropped: q.totalDropped,
		PauseCount:   q.pauseCount,
		ResumeCount:  q.resumeCount,
	}
}
