package units

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

var _ ports.Unit = (*VerdictUnit)(nil)

// MaxTopK bounds the number of candidates a decision can carry.
const MaxTopK = 100

// VerdictConfig defines how the final decision is drawn from the scores.
type VerdictConfig struct {
	// MinConfidence is the score the winner must reach (0.0-1.0). Below it
	// the decision abstains with ReasonLowConfidence.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence" toml:"min_confidence" validate:"gte=0,lte=1"`

	// TopK is the default number of ranked candidates attached to the
	// decision. A request may override it.
	TopK int `yaml:"top_k" json:"top_k" toml:"top_k" validate:"min=1,max=100"`
}

// DefaultVerdictConfig returns a VerdictConfig with sensible defaults.
func DefaultVerdictConfig() VerdictConfig {
	return VerdictConfig{
		MinConfidence: 0.3,
		TopK:          1,
	}
}

// VerdictUnit turns the final score map into a domain.Decision. It is the
// last stage of every pipeline.
type VerdictUnit struct {
	name   string
	config VerdictConfig
	tracer trace.Tracer
	now    func() time.Time
}

// NewVerdictUnit creates a VerdictUnit with the given configuration.
func NewVerdictUnit(name string, config VerdictConfig) (*VerdictUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: verdict: %w", domain.ErrInvalidConfiguration, err)
	}
	return &VerdictUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("verdict-unit"),
		now:    time.Now,
	}, nil
}

// Name returns the unit identifier.
func (vu *VerdictUnit) Name() string { return vu.name }

// Config returns the unit's configuration.
func (vu *VerdictUnit) Config() VerdictConfig { return vu.config }

// Execute ranks the scores and stores the decision under KeyDecision.
func (vu *VerdictUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := vu.tracer.Start(ctx, "VerdictUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", TypeVerdict),
			attribute.String("unit.id", vu.name),
			attribute.Float64("config.min_confidence", vu.config.MinConfidence),
		),
	)
	defer span.End()

	scores, err := requireScores(state)
	if err != nil {
		err = newUnitError(TypeVerdict, vu.name, err)
		span.RecordError(err)
		return state, err
	}

	decision := vu.decide(state, scores)

	span.SetAttributes(
		attribute.String("decision.language", decision.Language),
		attribute.Float64("decision.confidence", decision.Confidence),
		attribute.String("decision.reason", string(decision.Reason)),
		attribute.Int("decision.candidates", len(decision.Candidates)),
	)

	return domain.With(state, domain.KeyDecision, decision), nil
}

func (vu *VerdictUnit) decide(state domain.State, scores *domain.ScoreMap) *domain.Decision {
	strategy, _ := domain.Get(state, domain.KeyStrategy)
	decision := &domain.Decision{
		ID:        decisionID(state),
		Language:  domain.LangUndetermined,
		Strategy:  strategy,
		Scores:    scores.Clone(),
		Timestamp: vu.now(),
	}

	topK := vu.config.TopK
	if k, ok := domain.Get(state, domain.KeyTopK); ok && k > 0 {
		topK = min(k, MaxTopK)
	}
	for _, e := range scores.Top(topK) {
		decision.Candidates = append(decision.Candidates, domain.Candidate{
			Language:   e.Language,
			Confidence: clampUnit(e.Score),
		})
	}

	best, ok := scores.Max()
	if !ok || best.Score <= 0 {
		decision.Reason = domain.ReasonNoSignal
		return decision
	}

	confidence := clampUnit(best.Score)
	decision.Confidence = confidence

	// The tie-break stage has already discounted disallowed languages, so
	// the allow-list is checked ahead of the confidence floor.
	allowed, _ := domain.Get(state, domain.KeyAllowedLanguages)
	if len(allowed) > 0 && !slices.Contains(allowed, best.Language) {
		decision.Reason = domain.ReasonNotAllowed
		return decision
	}

	if confidence < vu.config.MinConfidence {
		decision.Reason = domain.ReasonLowConfidence
		return decision
	}

	predictions, _ := domain.Get(state, domain.KeyPredictions)
	decision.Language = best.Language
	decision.Reliable = slices.ContainsFunc(predictions, func(p domain.BackendPrediction) bool {
		return p.Reliable && p.Language == best.Language
	})
	return decision
}

// decisionID reuses the execution ID so a decision can be correlated with
// its trace; standalone runs get a fresh UUID.
func decisionID(state domain.State) string {
	if ec, ok := state.GetExecutionContext(); ok && ec.ExecutionID != "" {
		return ec.ExecutionID
	}
	return uuid.NewString()
}

// Validate checks the unit's configuration.
func (vu *VerdictUnit) Validate() error {
	if err := validate.Struct(vu.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// CreateVerdictUnit is a factory that builds a VerdictUnit from a
// parameter map.
func CreateVerdictUnit(id string, config map[string]any) (*VerdictUnit, error) {
	vc := DefaultVerdictConfig()
	if v, ok := floatParam(config, "min_confidence"); ok {
		vc.MinConfidence = v
	}
	if v, ok := intParam(config, "top_k"); ok {
		vc.TopK = v
	}
	return NewVerdictUnit(id, vc)
}

func clampUnit(v float64) float64 {
	return max(0, min(1, v))
}
