package application

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-langvote/infrastructure/backends"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// ErrNoBackends is returned by Collect when called without backends.
var ErrNoBackends = errors.New("no backends to collect from")

// Collect asks every backend for a prediction concurrently. Each backend
// runs behind its configured middleware. Failed backends are logged and
// dropped; the returned predictions keep the order of detectors. Collect
// only fails when there is nothing to call or ctx is done.
func (e *Engine) Collect(ctx context.Context, text string, detectors ...ports.Backend) ([]domain.BackendPrediction, error) {
	if len(detectors) == 0 {
		return nil, ErrNoBackends
	}

	results := make([]*domain.BackendPrediction, len(detectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range detectors {
		if b == nil {
			continue
		}
		wrapped := e.wrap(b)
		g.Go(func() error {
			p, err := wrapped.Detect(gctx, text)
			if err != nil {
				e.logger.Warn("backend failed",
					zap.String("backend", b.Name()),
					zap.String("status", backends.Status(err)),
					zap.Error(err),
				)
				return nil
			}
			results[i] = &p
			return nil
		})
	}
	// Goroutines never return errors; failures are absorbed above.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	predictions := make([]domain.BackendPrediction, 0, len(detectors))
	for _, p := range results {
		if p != nil {
			predictions = append(predictions, *p)
		}
	}
	e.logger.Debug("predictions collected",
		zap.Int("backends", len(detectors)),
		zap.Int("predictions", len(predictions)),
	)
	return predictions, nil
}

// wrap applies the middleware chain configured for b's name, or the
// default chain for unconfigured backends.
func (e *Engine) wrap(b ports.Backend) ports.Backend {
	chain, ok := e.middleware[b.Name()]
	if !ok {
		chain = e.defaultMiddleware
	}
	return backends.Wrap(b, chain...)
}
