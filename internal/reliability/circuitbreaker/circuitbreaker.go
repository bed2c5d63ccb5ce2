package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker provides fast-fail behavior when a dependency fails
// repeatedly. The event publisher uses it so a dead broker costs callers a
// state check instead of a connection timeout per request.
type CircuitBreaker struct {
	state            atomic.Value
	failureCount     atomic.Int32
	successCount     atomic.Int32
	lastFailureTime  atomic.Value
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration
	mu               sync.RWMutex
	onStateChange    func(from, to State)
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold, successThreshold int32, timeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		onStateChange:    func(_, _ State) {},
	}
	cb.state.Store(StateClosed)
	return cb
}

// SetStateChangeCallback registers a callback for state transitions
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Allow reports whether a call may proceed. An open breaker transitions to
// half-open once the timeout has elapsed since the last failure.
func (cb *CircuitBreaker) Allow() bool {
	switch cb.GetState() {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		last, ok := cb.lastFailureTime.Load().(*time.Time)
		if ok && time.Since(*last) >= cb.timeout {
			cb.setState(StateHalfOpen)
			return true
		}
		return false
	}
	return true
}

// RecordSuccess counts a success and may close a half-open breaker
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.GetState() {
	case StateHalfOpen:
		cb.successCount.Add(1)
		if cb.successCount.Load() >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.failureCount.Store(0)
			cb.successCount.Store(0)
		}
	case StateClosed:
		cb.failureCount.Store(0)
	}
}

// RecordFailure counts a failure and may trip the breaker open
func (cb *CircuitBreaker) RecordFailure() {
	now := time.Now()
	cb.lastFailureTime.Store(&now)

	switch cb.GetState() {
	case StateClosed:
		cb.failureCount.Add(1)
		if cb.failureCount.Load() >= cb.failureThreshold {
			cb.setState(StateOpen)
			cb.failureCount.Store(0)
			cb.successCount.Store(0)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.successCount.Store(0)
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	state, _ := cb.state.Load().(State)
	return state
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.GetState()
	if from == to {
		return
	}
	cb.state.Store(to)

	cb.mu.RLock()
	fn := cb.onStateChange
	cb.mu.RUnlock()
	fn(from, to)
}
