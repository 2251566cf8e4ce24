package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-langvote/infrastructure/units"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

func TestUnitRegistry_Builtins(t *testing.T) {
	r := NewUnitRegistry(nil)

	assert.Equal(t, []string{
		units.TypeConfusion,
		units.TypeContextBoost,
		units.TypeTieBreak,
		units.TypeVerdict,
		units.TypeVote,
	}, r.SupportedTypes())

	tests := []struct {
		unitType string
		params   map[string]any
	}{
		{units.TypeVote, map[string]any{"strategy": "consensus", "min_agreement": 3}},
		{units.TypeConfusion, map[string]any{"decisive_margin": 0.2}},
		{units.TypeContextBoost, nil},
		{units.TypeTieBreak, map[string]any{"script_bonus": 0.2}},
		{units.TypeVerdict, map[string]any{"min_confidence": 0.5, "top_k": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.unitType, func(t *testing.T) {
			u, err := r.CreateUnit(tt.unitType, "stage-"+tt.unitType, tt.params)
			require.NoError(t, err)
			assert.Equal(t, "stage-"+tt.unitType, u.Name())
		})
	}
}

func TestUnitRegistry_CreateUnitErrors(t *testing.T) {
	r := NewUnitRegistry(nil)

	t.Run("unknown type suggests a close match", func(t *testing.T) {
		_, err := r.CreateUnit("verdic", "v", nil)
		require.ErrorIs(t, err, ErrUnknownUnitType)
		assert.Contains(t, err.Error(), `did you mean "verdict"?`)
	})

	t.Run("no suggestion for distant names", func(t *testing.T) {
		_, err := r.CreateUnit("neural_rerank", "v", nil)
		require.ErrorIs(t, err, ErrUnknownUnitType)
		assert.NotContains(t, err.Error(), "did you mean")
	})

	t.Run("empty ID", func(t *testing.T) {
		_, err := r.CreateUnit(units.TypeVerdict, "", nil)
		assert.Error(t, err)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := r.CreateUnit(units.TypeVerdict, "v", map[string]any{"min_confidence": 2.0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create unit v")
	})

	t.Run("unit validation failure", func(t *testing.T) {
		require.NoError(t, r.RegisterUnitFactory("broken", func(id string, _ map[string]any) (ports.Unit, error) {
			return &stubUnit{name: id, invalid: true}, nil
		}))
		_, err := r.CreateUnit("broken", "b", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed validation")
	})
}

func TestUnitRegistry_RegisterUnitFactory(t *testing.T) {
	r := NewUnitRegistry(nil)

	assert.Error(t, r.RegisterUnitFactory("", func(string, map[string]any) (ports.Unit, error) { return nil, nil }))
	assert.Error(t, r.RegisterUnitFactory("custom", nil))

	require.NoError(t, r.RegisterUnitFactory("custom", func(id string, _ map[string]any) (ports.Unit, error) {
		return &stubUnit{name: id}, nil
	}))
	assert.True(t, r.Has("custom"))

	u, err := r.CreateUnit("custom", "mine", nil)
	require.NoError(t, err)
	out, err := u.Execute(context.Background(), domain.NewState())
	require.NoError(t, err)
	assert.Empty(t, out.Keys())
}

func TestUnitRegistry_InjectsMetrics(t *testing.T) {
	metrics := newRecordingMetrics()
	r := NewUnitRegistry(metrics)

	u, err := r.CreateUnit(units.TypeConfusion, "confusion", nil)
	require.NoError(t, err)

	scores := domain.NewScoreMapFromEntries(
		domain.ScoreEntry{Language: "es", Score: 0.5},
		domain.ScoreEntry{Language: "pt", Score: 0.45},
	)
	state := domain.With(domain.NewState(), domain.KeyScores, scores)
	state = domain.With(state, domain.KeyText, "eu tenho muito trabalho agora")

	_, err = u.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, 1.0, metrics.counters[ports.MetricConfusionAdjustments])
}

func TestUnitRegistry_ConcurrentAccess(t *testing.T) {
	r := NewUnitRegistry(nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = r.RegisterUnitFactory("custom", func(id string, _ map[string]any) (ports.Unit, error) {
					return &stubUnit{name: id}, nil
				})
				return
			}
			_, err := r.CreateUnit(units.TypeVerdict, "v", nil)
			assert.NoError(t, err)
			_ = r.SupportedTypes()
		}()
	}
	wg.Wait()
	assert.True(t, r.Has("custom"))
}

func TestDidYouMean(t *testing.T) {
	candidates := []string{"hard", "soft", "weighted", "consensus"}

	assert.Equal(t, ` (did you mean "weighted"?)`, didYouMean("wieghted", candidates))
	assert.Equal(t, ` (did you mean "consensus"?)`, didYouMean("concensus", candidates))
	assert.Empty(t, didYouMean("majority_of_detectors", candidates))
	assert.Empty(t, didYouMean("x", nil))
}
