package task

import (
	"sync"
	"time"
)

// State is a circuit breaker's finite-state machine position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// the circuit opens. Default: 5.
	FailureThreshold int
	// ResetTimeout is how long an open circuit waits before admitting
	// a half-open probe. Default: 30s.
	ResetTimeout time.Duration
	// HalfOpenRequests is the number of probes granted while
	// half-open. Default: 1.
	HalfOpenRequests int
	// ShouldCountAsFailure suppresses failure accounting for errors it
	// returns false for (e.g. CodeValidation). Default: every non-nil
	// TypedError counts.
	ShouldCountAsFailure func(*TypedError) bool
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenRequests <= 0 {
		c.HalfOpenRequests = 1
	}
	if c.ShouldCountAsFailure == nil {
		c.ShouldCountAsFailure = func(e *TypedError) bool { return e != nil }
	}
	return c
}

// CircuitBreaker implements a closed/open/half-open failure-rate
// breaker. It never calls back into anything: it only exposes
// admission, RecordSuccess, RecordFailure, and a read-only State — the
// caller is responsible for observing state transitions and reacting
// to them (e.g. firing its own state-change notifications).
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	nextAttempt   time.Time
	halfOpenCount int
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config.withDefaults(), state: StateClosed}
}

// State returns the current state, resolving an elapsed open→half-open
// transition as a side effect: once ResetTimeout has passed since the
// circuit opened, the next State/Admit call observes half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Admit decides whether a call may proceed. It returns admitted=false
// with the time the breaker expects to next allow a probe when the
// circuit is open or its half-open probe budget is exhausted.
func (cb *CircuitBreaker) Admit() (admitted bool, nextAttempt time.Time) {
	admitted, nextAttempt, _, _ = cb.admitTransition()
	return admitted, nextAttempt
}

// admitTransition is Admit, plus the from/to state observed atomically
// with the decision. Exposing this separately lets the engine capture
// a lazily-resolved open->half-open transition exactly once: calling
// State() first and Admit() second would have the first call already
// perform (and hide) the resolution.
func (cb *CircuitBreaker) admitTransition() (admitted bool, nextAttempt time.Time, from, to State) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	from = cb.state
	to = cb.currentStateLocked()

	switch to {
	case StateOpen:
		return false, cb.nextAttempt, from, to
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenRequests {
			return false, cb.nextAttempt, from, to
		}
		cb.halfOpenCount++
		return true, time.Time{}, from, to
	default:
		return true, time.Time{}, from, to
	}
}

// RecordSuccess reports a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.transitionLocked(StateClosed)
		cb.failures = 0
		cb.halfOpenCount = 0
	}
}

// RecordFailure reports a failed call. err may be nil; ShouldCountAsFailure
// decides whether nil/non-nil TypedErrors are accounted.
func (cb *CircuitBreaker) RecordFailure(err *TypedError) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.config.ShouldCountAsFailure(err) {
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures++
		cb.lastFailure = defaultNow()
		if cb.failures >= cb.config.FailureThreshold {
			cb.openLocked()
		}
	case StateHalfOpen:
		cb.lastFailure = defaultNow()
		cb.openLocked()
	}
}

// Reset forces the breaker back to closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.failures = 0
	cb.halfOpenCount = 0
}

func (cb *CircuitBreaker) openLocked() {
	cb.transitionLocked(StateOpen)
	cb.nextAttempt = defaultNow().Add(cb.config.ResetTimeout)
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	cb.state = to
	if to == StateHalfOpen {
		cb.halfOpenCount = 0
	}
}

// currentStateLocked resolves an elapsed reset timeout into a
// half-open transition. Caller must hold cb.mu.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && !cb.nextAttempt.IsZero() && !defaultNow().Before(cb.nextAttempt) {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}
