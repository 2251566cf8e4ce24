package voting

import (
	"gonum.org/v1/gonum/floats"

	"github.com/ahrav/go-langvote/internal/domain"
)

var _ Strategy = (*Hard)(nil)

// Hard is majority voting: each prediction casts one vote, scaled by its
// weight, for its predicted language only. Scores are vote shares, and
// ties are kept as equal scores.
type Hard struct{}

// NewHard creates a hard voting strategy.
func NewHard() *Hard { return &Hard{} }

// CreateHard is a factory function that creates a Hard strategy from a
// configuration map. Hard voting takes no parameters.
func CreateHard(params map[string]any) (*Hard, error) {
	var none struct{}
	if err := decodeParams(params, &none); err != nil {
		return nil, configError(NameHard, err)
	}
	return NewHard(), nil
}

// Name implements Strategy.
func (h *Hard) Name() string { return NameHard }

// Vote implements Strategy.
func (h *Hard) Vote(predictions []domain.BackendPrediction, weights map[string]float64) *domain.ScoreMap {
	votes := domain.NewScoreMap()
	cast := make([]float64, 0, len(predictions))
	for _, p := range predictions {
		if p.Language == "" {
			continue
		}
		w, ok := explicitWeight(weights, p.Source)
		if !ok {
			w = 1
		}
		votes.Add(p.Language, w)
		cast = append(cast, w)
	}
	return divideAll(votes, floats.Sum(cast))
}
