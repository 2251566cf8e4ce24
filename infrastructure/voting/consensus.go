package voting

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-langvote/internal/domain"
)

var _ Strategy = (*Consensus)(nil)

// ConsensusConfig defines the parameters of consensus voting.
type ConsensusConfig struct {
	// MinAgreement is the number of distinct backends that must predict
	// the same language for consensus to hold.
	MinAgreement int `yaml:"min_agreement" json:"min_agreement" toml:"min_agreement" validate:"min=1"`

	// Fallback names the strategy used when consensus fails.
	// Options: "weighted", "soft".
	Fallback string `yaml:"fallback" json:"fallback" toml:"fallback" validate:"required,oneof=weighted soft"`

	// Weighted configures the fallback when it is "weighted".
	Weighted WeightedConfig `yaml:"weighted" json:"weighted" toml:"weighted" validate:"-"`
}

// DefaultConsensusConfig returns a ConsensusConfig with sensible defaults.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		MinAgreement: 2,
		Fallback:     NameWeighted,
		Weighted:     DefaultWeightedConfig(),
	}
}

// Consensus awards a language the mean confidence of its supporters when
// at least MinAgreement distinct backends predict it. Other predicted
// languages keep a residual of their soft score scaled by the share of
// backends that disagreed. Without consensus the fallback strategy's
// result is returned as is.
type Consensus struct {
	config   ConsensusConfig
	fallback Strategy
	soft     *Soft
}

// NewConsensus creates a consensus voting strategy after validating config.
func NewConsensus(config ConsensusConfig) (*Consensus, error) {
	if err := validate.Struct(config); err != nil {
		return nil, configError(NameConsensus, err)
	}

	var fallback Strategy
	switch config.Fallback {
	case NameSoft:
		fallback = NewSoft()
	case NameWeighted:
		w, err := NewWeighted(config.Weighted)
		if err != nil {
			return nil, fmt.Errorf("consensus fallback: %w", err)
		}
		fallback = w
	}

	return &Consensus{config: config, fallback: fallback, soft: NewSoft()}, nil
}

// CreateConsensus is a factory function that creates a Consensus strategy
// from a configuration map, starting from DefaultConsensusConfig.
func CreateConsensus(params map[string]any) (*Consensus, error) {
	config := DefaultConsensusConfig()
	if err := decodeParams(params, &config); err != nil {
		return nil, configError(NameConsensus, err)
	}
	return NewConsensus(config)
}

// UnmarshalParameters decodes YAML parameters and returns a new Consensus
// strategy. Unknown fields are rejected.
func (c *Consensus) UnmarshalParameters(params yaml.Node) (*Consensus, error) {
	config := DefaultConsensusConfig()
	if err := decodeNode(params, &config); err != nil {
		return nil, configError(NameConsensus, err)
	}
	return NewConsensus(config)
}

// Name implements Strategy.
func (c *Consensus) Name() string { return NameConsensus }

// MinAgreement returns the configured agreement threshold.
func (c *Consensus) MinAgreement() int { return c.config.MinAgreement }

// Fallback returns the strategy used when consensus fails.
func (c *Consensus) Fallback() Strategy { return c.fallback }

// Vote implements Strategy.
func (c *Consensus) Vote(predictions []domain.BackendPrediction, weights map[string]float64) *domain.ScoreMap {
	if len(predictions) == 0 {
		return domain.NewScoreMap()
	}

	// Supporters per language, in order of first appearance.
	var order []string
	supporters := make(map[string]map[string]struct{})
	confidences := make(map[string][]float64)
	sources := make(map[string]struct{})
	for _, p := range predictions {
		if p.Language == "" {
			continue
		}
		if _, ok := supporters[p.Language]; !ok {
			order = append(order, p.Language)
			supporters[p.Language] = make(map[string]struct{})
		}
		supporters[p.Language][p.Source] = struct{}{}
		confidences[p.Language] = append(confidences[p.Language], p.Confidence)
		sources[p.Source] = struct{}{}
	}

	winner, agreeing := "", 0
	for _, lang := range order {
		if n := len(supporters[lang]); n > agreeing {
			winner, agreeing = lang, n
		}
	}
	if agreeing < c.config.MinAgreement {
		return c.fallback.Vote(predictions, weights)
	}

	soft := c.soft.Vote(predictions, weights)
	residual := 1 - float64(agreeing)/float64(len(sources))
	out := domain.NewScoreMap()
	for _, lang := range order {
		if lang == winner {
			confs := confidences[lang]
			out.Set(lang, floats.Sum(confs)/float64(len(confs)))
			continue
		}
		out.Set(lang, soft.Score(lang)*residual)
	}
	return out
}
