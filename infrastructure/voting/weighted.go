package voting

import (
	"maps"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-langvote/internal/domain"
)

var _ Strategy = (*Weighted)(nil)

// WeightedConfig defines the parameters of weighted voting.
type WeightedConfig struct {
	// DefaultWeights maps backend sources to weights used when the caller
	// supplies none for that source.
	DefaultWeights map[string]float64 `yaml:"default_weights" json:"default_weights" toml:"default_weights" validate:"omitempty,dive,keys,required,endkeys,gte=0"`

	// UseReliability falls back to the backend reliability table (rating/5)
	// for sources without an explicit or default weight.
	UseReliability bool `yaml:"use_reliability" json:"use_reliability" toml:"use_reliability"`

	// Reliability overrides or extends the builtin reliability ratings.
	Reliability map[string]int `yaml:"reliability" json:"reliability" toml:"reliability"`

	// UnreliablePenalty multiplies the weight of predictions the backend
	// itself flagged as unreliable.
	UnreliablePenalty float64 `yaml:"unreliable_penalty" json:"unreliable_penalty" toml:"unreliable_penalty" validate:"gt=0,lt=1"`
}

// DefaultWeightedConfig returns a WeightedConfig with sensible defaults.
func DefaultWeightedConfig() WeightedConfig {
	return WeightedConfig{
		UseReliability:    false,
		UnreliablePenalty: 0.7,
	}
}

// Weighted is soft voting with a per-backend weight. The weight of a
// prediction is resolved in priority order: the weights passed to Vote,
// the configured default weights, the reliability table when enabled, and
// finally 1.0.
type Weighted struct {
	config      WeightedConfig
	reliability *domain.ReliabilityTable
}

// NewWeighted creates a weighted voting strategy after validating config.
func NewWeighted(config WeightedConfig) (*Weighted, error) {
	if err := validate.Struct(config); err != nil {
		return nil, configError(NameWeighted, err)
	}
	table, err := domain.NewReliabilityTable(config.Reliability)
	if err != nil {
		return nil, configError(NameWeighted, err)
	}
	config.DefaultWeights = maps.Clone(config.DefaultWeights)
	config.Reliability = maps.Clone(config.Reliability)
	return &Weighted{config: config, reliability: table}, nil
}

// CreateWeighted is a factory function that creates a Weighted strategy
// from a configuration map, starting from DefaultWeightedConfig.
func CreateWeighted(params map[string]any) (*Weighted, error) {
	config := DefaultWeightedConfig()
	if err := decodeParams(params, &config); err != nil {
		return nil, configError(NameWeighted, err)
	}
	return NewWeighted(config)
}

// UnmarshalParameters decodes YAML parameters and returns a new Weighted
// strategy. Unknown fields are rejected.
func (w *Weighted) UnmarshalParameters(params yaml.Node) (*Weighted, error) {
	config := DefaultWeightedConfig()
	if err := decodeNode(params, &config); err != nil {
		return nil, configError(NameWeighted, err)
	}
	return NewWeighted(config)
}

// Name implements Strategy.
func (w *Weighted) Name() string { return NameWeighted }

// Config returns a copy of the strategy configuration.
func (w *Weighted) Config() WeightedConfig {
	c := w.config
	c.DefaultWeights = maps.Clone(c.DefaultWeights)
	c.Reliability = maps.Clone(c.Reliability)
	return c
}

// Weight returns the weight applied to a prediction from source before the
// unreliable penalty.
func (w *Weighted) Weight(source string, weights map[string]float64) float64 {
	if v, ok := explicitWeight(weights, source); ok {
		return v
	}
	if v, ok := w.config.DefaultWeights[source]; ok {
		return v
	}
	if w.config.UseReliability {
		return w.reliability.Weight(source)
	}
	return 1
}

// Vote implements Strategy. Scores are the weighted probability sums
// divided by the total applied weight.
func (w *Weighted) Vote(predictions []domain.BackendPrediction, weights map[string]float64) *domain.ScoreMap {
	sums := domain.NewScoreMap()
	applied := make([]float64, 0, len(predictions))
	for _, p := range predictions {
		dist := p.Distribution()
		if dist.Len() == 0 {
			continue
		}
		weight := w.Weight(p.Source, weights)
		if !p.Reliable {
			weight *= w.config.UnreliablePenalty
		}
		for _, e := range dist.Entries() {
			sums.Add(e.Language, weight*e.Score)
		}
		applied = append(applied, weight)
	}
	return divideAll(sums, floats.Sum(applied))
}
