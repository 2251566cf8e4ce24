package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-langvote/internal/domain"
)

func newContext(t *testing.T, maxTurns int, decay float64) *Context {
	t.Helper()
	c, err := New(Options{MaxTurns: maxTurns, DecayFactor: decay})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantTurns int
		wantDecay float64
		wantErr   bool
	}{
		{name: "zero options take defaults", opts: Options{}, wantTurns: 2, wantDecay: 0.9},
		{name: "custom", opts: Options{MaxTurns: 10, DecayFactor: 0.5}, wantTurns: 10, wantDecay: 0.5},
		{name: "decay of one", opts: Options{MaxTurns: 1, DecayFactor: 1}, wantTurns: 1, wantDecay: 1},
		{name: "negative turns", opts: Options{MaxTurns: -1}, wantErr: true},
		{name: "decay above one", opts: Options{DecayFactor: 1.5}, wantErr: true},
		{name: "negative decay", opts: Options{DecayFactor: -0.2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTurns, c.MaxTurns())
			assert.Equal(t, tt.wantDecay, c.DecayFactor())
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestContext_Eviction(t *testing.T) {
	c := newContext(t, 3, 0.9)
	for i, lang := range []string{"en", "fr", "de", "es", "it"} {
		c.AddTurn("msg", lang, 0.5+float64(i)/10)
	}

	require.Equal(t, 3, c.Len())
	var langs []string
	for _, turn := range c.Turns() {
		langs = append(langs, turn.Language)
	}
	assert.Equal(t, []string{"de", "es", "it"}, langs)

	last, ok := c.LastTurn()
	require.True(t, ok)
	assert.Equal(t, "it", last.Language)
	assert.False(t, last.Timestamp.IsZero())
}

func TestContext_LanguageDistribution(t *testing.T) {
	t.Run("recency weighting", func(t *testing.T) {
		c := newContext(t, 5, 0.5)
		c.AddTurn("Hello", "en", 0.9)
		c.AddTurn("Bonjour", "fr", 0.9)

		dist := c.LanguageDistribution()
		assert.Greater(t, dist.Score("fr"), dist.Score("en"))
		assert.InDelta(t, 2.0/3, dist.Score("fr"), 1e-9)
		assert.InDelta(t, 1.0, dist.Total(), 1e-9)
	})

	t.Run("skips undetermined turns", func(t *testing.T) {
		c := newContext(t, 5, 0.9)
		c.AddTurn("???", "", 0.9)
		c.AddTurn("ok", domain.LangUnknown, 0.9)
		c.AddTurn("hmm", domain.LangUndetermined, 0.9)
		c.AddTurn("Hallo", "de", 0.8)

		dist := c.LanguageDistribution()
		assert.Equal(t, []string{"de"}, dist.Languages())
		assert.Equal(t, 1.0, dist.Score("de"))
	})

	t.Run("empty and zero confidence", func(t *testing.T) {
		c := NewDefault()
		assert.Equal(t, 0, c.LanguageDistribution().Len())

		c.AddTurn("x", "en", 0)
		assert.Equal(t, 0, c.LanguageDistribution().Len())
		_, ok := c.DominantLanguage()
		assert.False(t, ok)
	})

	t.Run("accumulates per language", func(t *testing.T) {
		c := newContext(t, 3, 1)
		c.AddTurn("a", "es", 0.5)
		c.AddTurn("b", "pt", 0.5)
		c.AddTurn("c", "es", 0.5)

		assert.InDelta(t, 2.0/3, c.LanguageDistribution().Score("es"), 1e-9)
	})
}

func TestContext_DominantLanguage(t *testing.T) {
	c := newContext(t, 4, 1)
	c.AddTurn("a", "sv", 0.5)
	c.AddTurn("b", "no", 0.5)

	lang, ok := c.DominantLanguage()
	require.True(t, ok)
	assert.Equal(t, "sv", lang, "exact ties resolve to the first language seen")

	c.AddTurn("c", "no", 0.6)
	lang, _ = c.DominantLanguage()
	assert.Equal(t, "no", lang)
}

func TestContext_LanguageStreak(t *testing.T) {
	c := newContext(t, 10, 0.9)

	lang, count := c.LanguageStreak()
	assert.Equal(t, "", lang)
	assert.Equal(t, 0, count)

	for range 3 {
		c.AddTurn("hi", "en", 0.9)
	}
	lang, count = c.LanguageStreak()
	assert.Equal(t, "en", lang)
	assert.Equal(t, 3, count)

	c.AddTurn("salut", "fr", 0.9)
	lang, count = c.LanguageStreak()
	assert.Equal(t, "fr", lang)
	assert.Equal(t, 1, count)

	c.AddTurn("...", "", 0)
	lang, count = c.LanguageStreak()
	assert.Equal(t, "", lang)
	assert.Equal(t, 0, count)
}

func TestContext_ContextBoost(t *testing.T) {
	tests := []struct {
		name  string
		turns []string
		lang  string
		want  float64
	}{
		{name: "absent language", turns: []string{"en"}, lang: "fr", want: 0},
		{name: "single turn has no streak bonus", turns: []string{"en"}, lang: "en", want: 0.15},
		{name: "streak of two", turns: []string{"en", "en"}, lang: "en", want: 0.15 + 0.04},
		{name: "streak bonus is capped", turns: []string{"en", "en", "en", "en", "en", "en", "en"}, lang: "en", want: 0.15 + 0.1},
		{name: "no bonus for other language", turns: []string{"fr", "en", "en"}, lang: "fr", want: 0.15 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContext(t, 10, 1)
			for _, lang := range tt.turns {
				c.AddTurn("text", lang, 1)
			}
			got := c.ContextBoost(tt.lang)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.LessOrEqual(t, got, 0.3)
		})
	}
}

func TestContext_ClearAndClone(t *testing.T) {
	c := newContext(t, 3, 0.9)
	c.AddTurn("Hola", "es", 0.9)

	clone := c.Clone()
	clone.AddTurn("Olá", "pt", 0.9)
	assert.Equal(t, 1, c.Len(), "clone must not alias the original")

	var booster domain.ContextBooster = c
	state := domain.With(domain.NewState(), domain.KeyContextBooster, booster)
	got, ok := domain.Get(state, domain.KeyContextBooster)
	require.True(t, ok)
	assert.InDelta(t, 0.15, got.ContextBoost("es"), 1e-9)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.LastTurn()
	assert.False(t, ok)
	assert.InDelta(t, 0.15, got.ContextBoost("es"), 1e-9, "state copy is independent")
}

func TestContext_ConfidenceClamped(t *testing.T) {
	c := NewDefault()
	c.AddTurn("a", "en", 1.7)
	c.AddTurn("b", "fr", -1)

	turns := c.Turns()
	assert.Equal(t, 1.0, turns[0].Confidence)
	assert.Equal(t, 0.0, turns[1].Confidence)
}
