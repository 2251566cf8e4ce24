package backends

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a call without
// reaching the backend.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

// Circuit breaker states.
const (
	// StateClosed lets every call through.
	StateClosed BreakerState = iota

	// StateOpen rejects calls until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets a single trial call through after the cooldown and
	// rejects the rest until it completes.
	StateHalfOpen
)

// String returns the state label used in metrics.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a backend after maxFailures consecutive
// failures and probes it again once cooldown has passed.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
	trial       bool // a half-open trial call is in flight
	now         func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker. A maxFailures below
// one is treated as one.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Call runs fn unless the circuit is open and records its outcome. While
// half-open only the caller holding the trial slot reaches fn; others get
// ErrCircuitOpen. Context cancellation by the caller does not count as a
// backend failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
	}
	trial := cb.state == StateHalfOpen
	if trial {
		if cb.trial {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.trial = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trial = false
	} else if cb.state == StateHalfOpen {
		// A call admitted before the circuit opened does not decide the trial.
		return err
	}
	switch {
	case err == nil:
		cb.failures = 0
		cb.state = StateClosed
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		// The caller gave up; the backend is not at fault.
	default:
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
	}
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// circuitBreakerBackend routes calls through a CircuitBreaker.
type circuitBreakerBackend struct {
	next ports.Backend
	cb   *CircuitBreaker
}

// CircuitBreak creates middleware around a single circuit breaker. Every
// backend wrapped by the same middleware value shares that breaker, so
// wrap per backend name to isolate failures.
func CircuitBreak(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakWith(NewCircuitBreaker(maxFailures, cooldown))
}

// CircuitBreakWith creates middleware around an existing breaker.
func CircuitBreakWith(cb *CircuitBreaker) Middleware {
	return func(next ports.Backend) ports.Backend {
		return &circuitBreakerBackend{
			next: next,
			cb:   cb,
		}
	}
}

func (c *circuitBreakerBackend) Name() string { return c.next.Name() }

// Detect fails fast with ErrBackendUnavailable while the circuit is open.
func (c *circuitBreakerBackend) Detect(ctx context.Context, text string) (domain.BackendPrediction, error) {
	var p domain.BackendPrediction
	err := c.cb.Call(ctx, func() error {
		var err error
		p, err = c.next.Detect(ctx, text)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return domain.BackendPrediction{}, ports.NewBackendError(c.next.Name(), OpDetect,
			fmt.Errorf("%w: %w", ports.ErrBackendUnavailable, err))
	}
	return p, err
}
