package backends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// timeoutBackend bounds the duration of each call.
type timeoutBackend struct {
	next    ports.Backend
	timeout time.Duration
}

// Timeout creates middleware that cancels a call after timeout. A
// non-positive timeout disables the middleware.
func Timeout(timeout time.Duration) Middleware {
	return func(next ports.Backend) ports.Backend {
		if timeout <= 0 {
			return next
		}
		return &timeoutBackend{
			next:    next,
			timeout: timeout,
		}
	}
}

func (t *timeoutBackend) Name() string { return t.next.Name() }

// Detect runs the call under a deadline. Exceeding it yields a
// BackendError wrapping ErrTimeout.
func (t *timeoutBackend) Detect(ctx context.Context, text string) (domain.BackendPrediction, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	p, err := t.next.Detect(ctx, text)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ports.ErrTimeout) {
		return domain.BackendPrediction{}, ports.NewBackendError(t.next.Name(), OpDetect,
			fmt.Errorf("%w after %s: %w", ports.ErrTimeout, t.timeout, err))
	}
	return p, err
}
