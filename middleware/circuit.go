package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/pocketflow"
)

// ErrCircuitOpen is returned by exec attempts rejected by an open circuit.
var ErrCircuitOpen = errors.New("middleware: circuit open")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed allows attempts through.
	StateClosed CircuitState = iota
	// StateOpen rejects every attempt.
	StateOpen
	// StateHalfOpen allows trial attempts to test recovery.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
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

// CircuitBreaker stops calling a failing exec for a while. One breaker may
// guard several nodes that share a dependency.
type CircuitBreaker struct {
	name             string
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenRequests int
	now              func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	openedAt  time.Time
	successes int
}

// CircuitOption configures a circuit breaker.
type CircuitOption func(*CircuitBreaker)

// WithMaxFailures sets the consecutive failures that open the circuit.
func WithMaxFailures(n int) CircuitOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// WithResetTimeout sets how long the circuit stays open before a trial.
func WithResetTimeout(d time.Duration) CircuitOption {
	return func(cb *CircuitBreaker) {
		cb.resetTimeout = d
	}
}

// WithHalfOpenRequests sets the trial successes needed to close again.
func WithHalfOpenRequests(n int) CircuitOption {
	return func(cb *CircuitBreaker) {
		cb.halfOpenRequests = n
	}
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, opts ...CircuitOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		maxFailures:      5,
		resetTimeout:     30 * time.Second,
		halfOpenRequests: 1,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Middleware guards exec with the breaker. A rejected attempt fails with
// ErrCircuitOpen without calling exec, so it still counts as a retry and
// still reaches the node's fallback.
func (cb *CircuitBreaker) Middleware() Middleware {
	return func(steps pocketflow.Steps) pocketflow.Steps {
		steps = steps.WithDefaults()
		exec := steps.Exec
		steps.Exec = func(ctx context.Context, prepResult any) (any, error) {
			if err := cb.allow(ctx); err != nil {
				return nil, err
			}
			result, err := exec(ctx, prepResult)
			cb.record(ctx, err == nil)
			return result, err
		}
		return steps
	}
}

func (cb *CircuitBreaker) allow(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
		cb.transitionTo(ctx, StateHalfOpen)
	}
	return nil
}

func (cb *CircuitBreaker) record(ctx context.Context, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case success && cb.state == StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenRequests {
			cb.transitionTo(ctx, StateClosed)
		}
	case success:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		// Any failure while half-open reopens the circuit.
		cb.transitionTo(ctx, StateOpen)
	default:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.transitionTo(ctx, StateOpen)
		}
	}
}

func (cb *CircuitBreaker) transitionTo(ctx context.Context, state CircuitState) {
	if cb.state == state {
		return
	}
	pocketflow.LoggerFrom(ctx).Info(ctx, "circuit state changed",
		"circuit", cb.name, "from", cb.state.String(), "to", state.String())

	cb.state = state
	cb.failures = 0
	cb.successes = 0
	if state == StateOpen {
		cb.openedAt = cb.now()
	}
}
