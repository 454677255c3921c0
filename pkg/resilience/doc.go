// Package resilience provides the generic reliability building blocks the
// redaction pipeline runs on under continuous streaming load: a circuit
// breaker, a backpressure queue with watermark hysteresis, and an
// OTP-style supervisor with restart strategies.
//
// # Circuit Breaker
//
// CircuitBreaker guards a call path. After failureThreshold consecutive
// failures the circuit opens and calls fail fast with CircuitOpenError.
// After the reset timeout exactly one probe call is let through
// (half-open); successThreshold consecutive successes close the circuit
// again, while a single half-open failure reopens it immediately.
//
// # Backpressure Queue
//
// BackpressureQueue is a bounded buffer with high/low watermarks. The
// pause signal fires only when size crosses the high watermark upward and
// resume only when it crosses the low watermark downward, so producers see
// stable signals instead of per-item toggling. Items beyond the hard
// ceiling are dropped and counted, never thrown.
//
// # Supervisor
//
// Supervisor starts children in declared order, observes their exits, and
// restarts per strategy (one_for_one, one_for_all, rest_for_one) and
// restart type (permanent, temporary, transient). A sliding-window restart
// budget bounds restart storms; exceeding it abandons the child and emits
// an escalation event instead of looping.
package resilience
