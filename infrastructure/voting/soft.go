package voting

import (
	"github.com/ahrav/go-langvote/internal/domain"
)

var _ Strategy = (*Soft)(nil)

// Soft averages the probability distributions of all predictions. A
// prediction without a distribution counts as a singleton at its predicted
// language with its confidence.
type Soft struct{}

// NewSoft creates a soft voting strategy.
func NewSoft() *Soft { return &Soft{} }

// CreateSoft is a factory function that creates a Soft strategy from a
// configuration map. Soft voting takes no parameters.
func CreateSoft(params map[string]any) (*Soft, error) {
	var none struct{}
	if err := decodeParams(params, &none); err != nil {
		return nil, configError(NameSoft, err)
	}
	return NewSoft(), nil
}

// Name implements Strategy.
func (s *Soft) Name() string { return NameSoft }

// Vote implements Strategy. Each language's score is the weighted sum of
// its probabilities divided by the number of contributing predictions.
func (s *Soft) Vote(predictions []domain.BackendPrediction, weights map[string]float64) *domain.ScoreMap {
	sums := domain.NewScoreMap()
	n := 0
	for _, p := range predictions {
		dist := p.Distribution()
		if dist.Len() == 0 {
			continue
		}
		w, ok := explicitWeight(weights, p.Source)
		if !ok {
			w = 1
		}
		for _, e := range dist.Entries() {
			sums.Add(e.Language, w*e.Score)
		}
		n++
	}
	return divideAll(sums, float64(n))
}
