package backends

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// retryBackend re-issues retryable failures with exponential backoff.
type retryBackend struct {
	next       ports.Backend
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Retry creates middleware that retries a failed call up to maxRetries
// times. Only BackendErrors reporting IsRetryable are retried; an open
// circuit or an ended context stops immediately.
func Retry(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next ports.Backend) ports.Backend {
		return &retryBackend{
			next:       next,
			maxRetries: max(maxRetries, 0),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryBackend) Name() string { return r.next.Name() }

// Detect calls the backend until it succeeds, the error is permanent or
// the retry budget runs out.
func (r *retryBackend) Detect(ctx context.Context, text string) (domain.BackendPrediction, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		p, err := r.next.Detect(ctx, text)
		if err == nil {
			return p, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return domain.BackendPrediction{}, ports.NewBackendError(r.next.Name(), OpDetect, ctx.Err())
		case <-time.After(r.delay(attempt)):
		}
	}
	if r.maxRetries == 0 {
		return domain.BackendPrediction{}, lastErr
	}
	return domain.BackendPrediction{}, fmt.Errorf("backend %s failed after retries: %w", r.next.Name(), lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var be *ports.BackendError
	return errors.As(err, &be) && be.IsRetryable()
}

// delay returns the backoff for attempt with ±25% jitter, capped at maxDelay.
func (r *retryBackend) delay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	d := r.baseDelay << attempt
	if d <= 0 || d > r.maxDelay {
		d = r.maxDelay
	}
	// #nosec G404 - jitter does not need a cryptographic source
	jitter := time.Duration(rand.Float64() * float64(d) * 0.5)
	d = d + jitter - d/4
	return min(d, r.maxDelay)
}
