package tiebreak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-langvote/internal/domain"
)

func newTieBreaker(t *testing.T, script, allowed []string) *TieBreaker {
	t.Helper()
	tb, err := New(DefaultConfig())
	require.NoError(t, err)
	return tb.With(script, allowed)
}

func pred(source, lang string, conf float64, reliable bool) domain.BackendPrediction {
	p := domain.NewPrediction(source, lang, conf)
	p.Reliable = reliable
	return p
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "no penalty", mutate: func(c *Config) { c.UnreliablePenalty = 1 }},
		{name: "zero unreliable penalty", mutate: func(c *Config) { c.UnreliablePenalty = 0 }, wantErr: true},
		{name: "negative bonus", mutate: func(c *Config) { c.ScriptBonus = -0.1 }, wantErr: true},
		{name: "disallowed penalty of one", mutate: func(c *Config) { c.DisallowedPenalty = 1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTieBreaker_ResolvePredictions(t *testing.T) {
	tests := []struct {
		name    string
		script  []string
		allowed []string
		preds   []domain.BackendPrediction
		assert  func(t *testing.T, scores *domain.ScoreMap)
	}{
		{
			name:  "reliability decides an even tie",
			preds: []domain.BackendPrediction{pred("a", "en", 0.9, true), pred("b", "fr", 0.9, false)},
			assert: func(t *testing.T, scores *domain.ScoreMap) {
				assert.Greater(t, scores.Score("en"), scores.Score("fr"))
				assert.InDelta(t, 0.72, scores.Score("fr"), 1e-9)
			},
		},
		{
			name:   "script match bonus",
			script: []string{"ru", "uk"},
			preds:  []domain.BackendPrediction{pred("a", "ru", 0.7, true), pred("b", "en", 0.7, true)},
			assert: func(t *testing.T, scores *domain.ScoreMap) {
				assert.Greater(t, scores.Score("ru"), scores.Score("en"))
				assert.InDelta(t, 0.8, scores.Score("ru"), 1e-9)
				assert.False(t, scores.Has("uk"), "script languages are never added")
			},
		},
		{
			name:    "allow-list penalty",
			allowed: []string{"en", "de"},
			preds:   []domain.BackendPrediction{pred("a", "en", 0.7, true), pred("b", "fr", 0.9, true)},
			assert: func(t *testing.T, scores *domain.ScoreMap) {
				assert.Greater(t, scores.Score("en"), scores.Score("fr"))
				assert.Greater(t, scores.Score("fr"), 0.0, "disallowed languages are suppressed, not removed")
			},
		},
		{
			name:  "best confidence per language",
			preds: []domain.BackendPrediction{pred("a", "es", 0.4, true), pred("b", "es", 0.6, true), pred("c", "pt", 0.5, true)},
			assert: func(t *testing.T, scores *domain.ScoreMap) {
				assert.Equal(t, 0.6, scores.Score("es"))
				assert.Equal(t, []string{"es", "pt"}, scores.Languages())
			},
		},
		{
			name:  "empty input",
			preds: nil,
			assert: func(t *testing.T, scores *domain.ScoreMap) {
				assert.Equal(t, 0, scores.Len())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTieBreaker(t, tt.script, tt.allowed)
			tt.assert(t, tb.ResolvePredictions(tt.preds))
		})
	}
}

func TestTieBreaker_Resolve(t *testing.T) {
	in := domain.NewScoreMapFromEntries(
		domain.ScoreEntry{Language: "sr", Score: 0.5},
		domain.ScoreEntry{Language: "hr", Score: 0.5},
		domain.ScoreEntry{Language: "ru", Score: 0.2},
	)

	t.Run("preserves keys and input", func(t *testing.T) {
		tb := newTieBreaker(t, []string{"hr"}, nil)
		out := tb.Resolve(in, nil)

		assert.Equal(t, in.Languages(), out.Languages())
		assert.Greater(t, out.Score("hr"), out.Score("sr"))
		assert.Equal(t, 0.5, in.Score("hr"), "input must not be modified")
	})

	t.Run("unreliable languages are scaled", func(t *testing.T) {
		tb := newTieBreaker(t, nil, nil)
		out := tb.Resolve(in, []string{"sr", "missing"})

		assert.InDelta(t, 0.4, out.Score("sr"), 1e-9)
		assert.Equal(t, 0.5, out.Score("hr"))
		assert.False(t, out.Has("missing"))
	})

	t.Run("allow-list suppresses", func(t *testing.T) {
		tb := newTieBreaker(t, nil, []string{"hr", "sr"})
		out := tb.Resolve(in, nil)

		assert.InDelta(t, 0.02, out.Score("ru"), 1e-9)
		assert.True(t, tb.Allowed("hr"))
		assert.False(t, tb.Allowed("ru"))
	})

	t.Run("empty allow-list permits all", func(t *testing.T) {
		tb := newTieBreaker(t, nil, []string{})
		assert.True(t, tb.Allowed("anything"))
		assert.True(t, in.Equal(tb.Resolve(in, nil)))
	})
}
