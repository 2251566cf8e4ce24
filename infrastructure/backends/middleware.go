// Package backends provides middleware around ports.Backend: rate limiting,
// timeouts, retries, circuit breaking, metrics and tracing. Backends
// themselves are external collaborators; this package only shapes how the
// engine calls them.
package backends

import (
	"context"
	"fmt"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// OpDetect is the operation name carried by BackendErrors from Detect.
const OpDetect = "detect"

// Middleware wraps a Backend to add cross-cutting behavior without changing
// the detector itself.
type Middleware func(ports.Backend) ports.Backend

// Wrap applies middleware to b. The first middleware is the outermost, so
// Wrap(b, RateLimit(...), Timeout(...)) waits for the limiter before the
// timeout starts counting.
func Wrap(b ports.Backend, middleware ...Middleware) ports.Backend {
	for i := len(middleware) - 1; i >= 0; i-- {
		b = middleware[i](b)
	}
	return b
}

// Static returns a backend that always answers with prediction. It replays
// recorded backend output through the middleware stack.
func Static(prediction domain.BackendPrediction) ports.Backend {
	return ports.BackendFunc{
		BackendName: prediction.Source,
		DetectFunc: func(ctx context.Context, _ string) (domain.BackendPrediction, error) {
			if err := ctx.Err(); err != nil {
				return domain.BackendPrediction{}, ports.NewBackendError(prediction.Source, OpDetect, err)
			}
			return prediction, nil
		},
	}
}

// Validated checks each prediction a backend returns and rejects malformed
// ones with ErrInvalidResponse. A prediction missing its source is stamped
// with the backend name.
func Validated() Middleware {
	return func(next ports.Backend) ports.Backend {
		return ports.BackendFunc{
			BackendName: next.Name(),
			DetectFunc: func(ctx context.Context, text string) (domain.BackendPrediction, error) {
				p, err := next.Detect(ctx, text)
				if err != nil {
					return p, err
				}
				if p.Source == "" {
					p.Source = next.Name()
				}
				if err := p.Validate(); err != nil {
					return domain.BackendPrediction{}, ports.NewBackendError(next.Name(), OpDetect,
						fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
				}
				return p, nil
			},
		}
	}
}
