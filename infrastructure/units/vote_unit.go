package units

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-langvote/infrastructure/voting"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

var _ ports.Unit = (*VoteUnit)(nil)

// VoteUnit runs a voting strategy over the collected predictions and stores
// the resulting score map as the first pipeline stage. It is stateless and
// safe for concurrent execution.
type VoteUnit struct {
	name     string
	strategy voting.Strategy
	tracer   trace.Tracer
}

// NewVoteUnit creates a VoteUnit that aggregates with strategy.
func NewVoteUnit(name string, strategy voting.Strategy) (*VoteUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if strategy == nil {
		return nil, fmt.Errorf("%w: voting strategy", ErrNilDependency)
	}
	return &VoteUnit{
		name:     name,
		strategy: strategy,
		tracer:   otel.Tracer("vote-unit"),
	}, nil
}

// Name returns the unit identifier.
func (vu *VoteUnit) Name() string { return vu.name }

// Strategy returns the wrapped voting strategy.
func (vu *VoteUnit) Strategy() voting.Strategy { return vu.strategy }

// Execute reads predictions and optional explicit weights, votes, and
// records the scores and the strategy name. Missing predictions are an
// error; an empty prediction list yields an empty score map.
func (vu *VoteUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := vu.tracer.Start(ctx, "VoteUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeVote),
			attribute.String("unit.id", vu.name),
			attribute.String("vote.strategy", vu.strategy.Name()),
		),
	)
	defer span.End()

	predictions, ok := domain.Get(state, domain.KeyPredictions)
	if !ok {
		err := newUnitError(TypeVote, vu.name, missing(domain.KeyPredictions))
		span.RecordError(err)
		return state, err
	}
	weights, _ := domain.Get(state, domain.KeyWeights)

	scores := vu.strategy.Vote(predictions, weights)

	span.SetAttributes(
		attribute.Int("vote.predictions", len(predictions)),
		attribute.Int("vote.languages", scores.Len()),
	)

	state = state.WithStage(vu.name, scores)
	return domain.With(state, domain.KeyStrategy, vu.strategy.Name()), nil
}

// Validate checks that the unit is ready to run.
func (vu *VoteUnit) Validate() error {
	if vu.strategy == nil {
		return fmt.Errorf("%w: voting strategy", ErrNilDependency)
	}
	return nil
}

// CreateVoteUnit is a factory that builds the named strategy from a
// parameter map ("strategy" selects the variant; remaining keys configure
// it) and wraps it in a VoteUnit.
func CreateVoteUnit(id string, config map[string]any) (*VoteUnit, error) {
	name := voting.NameWeighted
	params := make(map[string]any, len(config))
	for k, v := range config {
		if k == "strategy" {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: strategy must be a string, got %T",
					domain.ErrInvalidConfiguration, v)
			}
			name = s
			continue
		}
		params[k] = v
	}

	strategy, err := voting.Create(name, params)
	if err != nil {
		return nil, err
	}
	return NewVoteUnit(id, strategy)
}
