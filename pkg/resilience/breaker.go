package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState string

const (
	// StateClosed is normal operation; calls pass through.
	StateClosed CircuitState = "closed"

	// StateOpen rejects calls immediately until the reset timeout elapses.
	StateOpen CircuitState = "open"

	// StateHalfOpen lets one probe call through to test recovery.
	StateHalfOpen CircuitState = "half_open"
)

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit from closed.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	// Default: 2
	SuccessThreshold int `yaml:"success_threshold"`

	// ResetTimeout is how long the circuit stays open before a probe is
	// allowed.
	// Default: 30s
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// OperationTimeout independently fails a call that does not settle in
	// time. Zero disables the per-call timeout.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
	}
}

// BreakerStats is a point-in-time snapshot of breaker counters.
type BreakerStats struct {
	State              CircuitState `json:"state"`
	Failures           int          `json:"failures"`
	Successes          int          `json:"successes"`
	TotalRequests      int64        `json:"totalRequests"`
	SuccessfulRequests int64        `json:"successfulRequests"`
	FailedRequests     int64        `json:"failedRequests"`
	RejectedRequests   int64        `json:"rejectedRequests"`
	Timeouts           int64        `json:"timeouts"`
}

// CircuitBreaker fails fast after repeated failures and probes recovery
// after a cooldown. Safe for concurrent use.
type CircuitBreaker struct {
	name   string
	config BreakerConfig
	logger *slog.Logger

	// now is the clock, swappable in tests.
	now func() time.Time

	mu            sync.Mutex
	state         CircuitState
	failures      int // consecutive failures
	successes     int // consecutive half-open successes
	probeInFlight bool
	nextRetryTime time.Time

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	rejectedRequests   int64
	timeouts           int64
}

// NewCircuitBreaker creates a breaker with the given name and config.
func NewCircuitBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		name:   name,
		config: cfg,
		logger: logger.With("component", "resilience.breaker", "breaker", name),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn under the breaker's protection. In the open state calls
// are rejected immediately with CircuitOpenError unless the reset timeout
// has elapsed, in which case exactly one probe is let through.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := cb.runWithTimeout(ctx, fn)
	cb.afterCall(err)
	return err
}

// beforeCall checks admission and performs the open -> half_open
// transition when the retry time has passed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.state {
	case StateClosed:
		return nil

	case StateHalfOpen:
		// The probe slot is exclusive: while one probe is outstanding,
		// other callers are rejected like open-state calls.
		if cb.probeInFlight {
			cb.rejectedRequests++
			return &CircuitOpenError{RetryAfter: cb.nextRetryTime}
		}
		cb.probeInFlight = true
		return nil

	case StateOpen:
		if cb.now().Before(cb.nextRetryTime) {
			cb.rejectedRequests++
			return &CircuitOpenError{RetryAfter: cb.nextRetryTime}
		}
		cb.transitionTo(StateHalfOpen)
		cb.probeInFlight = true
		return nil
	}
	return nil
}

// runWithTimeout executes fn, applying the optional per-call operation
// timeout. On timeout the call is abandoned: fn's goroutine may still be
// running, but its eventual result is discarded.
func (cb *CircuitBreaker) runWithTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if cb.config.OperationTimeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.config.OperationTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		cb.mu.Lock()
		cb.timeouts++
		cb.mu.Unlock()
		return ErrOperationTimeout
	}
}

// afterCall records the outcome and drives state transitions.
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probeInFlight = false

	if err == nil {
		cb.successfulRequests++
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.transitionTo(StateClosed)
			}
		}
		return
	}

	cb.failedRequests++
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		// One probe failure reopens immediately, no threshold needed.
		cb.transitionTo(StateOpen)
	}
}

// transitionTo moves the breaker to the target state. Caller holds the
// lock. Entering open always recomputes nextRetryTime.
func (cb *CircuitBreaker) transitionTo(target CircuitState) {
	from := cb.state
	cb.state = target

	switch target {
	case StateOpen:
		cb.nextRetryTime = cb.now().Add(cb.config.ResetTimeout)
		cb.successes = 0
	case StateHalfOpen:
		cb.successes = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	}

	cb.logger.Info("circuit state changed", "from", from, "to", target)
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		State:              cb.state,
		Failures:           cb.failures,
		Successes:          cb.successes,
		TotalRequests:      cb.totalRequests,
		SuccessfulRequests: cb.successfulRequests,
		FailedRequests:     cb.failedRequests,
		RejectedRequests:   cb.rejectedRequests,
		Timeouts:           cb.timeouts,
	}
}

// Reset forces the breaker back to closed with cleared counters. Operator
// action only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
}
