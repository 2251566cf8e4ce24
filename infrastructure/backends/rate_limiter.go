package backends

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// rateLimitedBackend paces calls with a token bucket.
type rateLimitedBackend struct {
	next    ports.Backend
	limiter *rate.Limiter
}

// RateLimit creates middleware that allows limit calls per second with the
// given burst. All backends wrapped by the same middleware value share one
// bucket.
func RateLimit(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.Backend) ports.Backend {
		return &rateLimitedBackend{
			next:    next,
			limiter: limiter,
		}
	}
}

func (r *rateLimitedBackend) Name() string { return r.next.Name() }

// Detect waits for a token before forwarding the call. A wait that cannot
// finish before the context ends fails with ErrRateLimited.
func (r *rateLimitedBackend) Detect(ctx context.Context, text string) (domain.BackendPrediction, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.BackendPrediction{}, ports.NewBackendError(r.next.Name(), OpDetect,
			fmt.Errorf("%w: %w", ports.ErrRateLimited, err))
	}
	return r.next.Detect(ctx, text)
}
