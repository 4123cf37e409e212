// internal/errors/breaker.go
package errors

import (
	stderrors "errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// CircuitBreaker stops calling a failing dependency for ResetTimeout after
// MaxFailures consecutive failures, then lets one trial call through.
type CircuitBreaker struct {
	name            string
	maxFailures     int
	resetTimeout    time.Duration
	now             func() time.Time
	mu              sync.Mutex
	state           CircuitBreakerState
	failures        int
	lastFailureTime time.Time
	nextAttemptTime time.Time
}

// BreakerStats is a snapshot of a breaker.
type BreakerStats struct {
	Name            string
	State           CircuitBreakerState
	Failures        int
	LastFailureTime time.Time
	NextAttemptTime time.Time
}

// NewCircuitBreaker creates a breaker. now may be nil.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, now func() time.Time) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{name: name, maxFailures: cfg.MaxFailures, resetTimeout: cfg.ResetTimeout, now: now}
}

// Execute runs op unless the breaker is open.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if !cb.CanExecute() {
		return ErrCircuitOpen
	}
	if err := op(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// CanExecute checks if circuit breaker allows execution
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if cb.now().After(cb.nextAttemptTime) {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records successful execution
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure records failed execution. A failed half-open trial reopens
// the breaker immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
		cb.nextAttemptTime = cb.lastFailureTime.Add(cb.resetTimeout)
	}
}

// GetState returns current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		Name:            cb.name,
		State:           cb.state,
		Failures:        cb.failures,
		LastFailureTime: cb.lastFailureTime,
		NextAttemptTime: cb.nextAttemptTime,
	}
}
