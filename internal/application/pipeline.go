package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

var _ ports.Pipeline = (*Pipeline)(nil)

// Pipeline runs executables in strict order, feeding each executable's
// output state into the next one. The decision engine builds one Pipeline
// at construction and shares it across requests.
type Pipeline struct {
	// id identifies the pipeline in errors and metrics.
	id string
	// executables holds the stages in execution order.
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	// metrics receives per-stage latency; nil disables reporting.
	metrics ports.MetricsCollector
	// mu guards executables and idSet.
	mu sync.RWMutex
}

// NewPipeline creates an empty pipeline. metrics may be nil.
func NewPipeline(id string, metrics ports.MetricsCollector) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
		metrics:     metrics,
	}
}

// Execute runs every executable in order. It checks for cancellation
// between stages and wraps a stage failure with the pipeline and stage IDs.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	executables := make([]ports.Executable, len(p.executables))
	copy(executables, p.executables)
	p.mu.RUnlock()

	current := state
	for _, exec := range executables {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		default:
		}

		start := time.Now()
		next, err := exec.Execute(ctx, current)
		if p.metrics != nil {
			p.metrics.RecordLatency(ports.MetricStageLatency, time.Since(start),
				map[string]string{"stage": exec.ID(), "pipeline": p.id})
		}
		if err != nil {
			return current, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
		}
		current = next
	}
	return current, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends exec to the pipeline. It rejects nil executables and
// duplicate IDs.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	execID := exec.ID()
	if _, exists := p.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", execID)
	}
	p.executables = append(p.executables, exec)
	p.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the ordered executables.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ports.Executable, len(p.executables))
	copy(result, p.executables)
	return result
}

// StageIDs returns the executable IDs in order.
func (p *Pipeline) StageIDs() []string {
	execs := p.Executables()
	ids := make([]string, len(execs))
	for i, e := range execs {
		ids[i] = e.ID()
	}
	return ids
}
