package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ahrav/go-langvote/infrastructure/units"
	"github.com/ahrav/go-langvote/internal/conversation"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewDefaultEngine(opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngine(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, "weighted", e.Strategy())
	assert.Equal(t, []string{"vote", "confusion", "context_boost", "tie_break", "verdict"}, e.Stages())
	assert.Equal(t, "langvote", e.Config().Name)

	cfg := DefaultEngineConfig()
	cfg.Strategy.Name = "plurality"
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestEngine_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("agreeing backends", func(t *testing.T) {
		metrics := newRecordingMetrics()
		e := newTestEngine(t, WithMetrics(metrics))

		d, err := e.Decide(ctx, Request{
			Text: "necesito ayuda con mi pedido",
			Predictions: []domain.BackendPrediction{
				pred("fasttext", "es", 0.9),
				pred("lingua", "es", 0.8),
				pred("langid", "pt", 0.6),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "es", d.Language)
		assert.Equal(t, domain.ReasonNone, d.Reason)
		assert.True(t, d.Reliable)
		assert.Equal(t, "weighted", d.Strategy)
		assert.InDelta(t, 1.7/3, d.Confidence, 1e-9)
		require.Len(t, d.Candidates, 1)
		assert.Equal(t, "es", d.Candidates[0].Language)
		_, err = uuid.Parse(d.ID)
		assert.NoError(t, err)

		assert.Equal(t, 1.0, metrics.counters[ports.MetricDecisions])
		assert.Equal(t, "none", metrics.labels[ports.MetricDecisions][0]["reason"])
		assert.Len(t, metrics.histograms[ports.MetricDecisionConfidence], 1)
		assert.Len(t, metrics.latencies[ports.MetricDecideLatency], 1)
		assert.Len(t, metrics.latencies[ports.MetricStageLatency], 5)
	})

	t.Run("no predictions", func(t *testing.T) {
		d, err := newTestEngine(t).Decide(ctx, Request{Text: "???"})
		require.NoError(t, err)
		assert.True(t, d.IsUndetermined())
		assert.Equal(t, domain.ReasonNoSignal, d.Reason)
		assert.Zero(t, d.Confidence)
	})

	t.Run("low confidence", func(t *testing.T) {
		d, err := newTestEngine(t).Decide(ctx, Request{
			Predictions: []domain.BackendPrediction{pred("fasttext", "es", 0.2)},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LangUndetermined, d.Language)
		assert.Equal(t, domain.ReasonLowConfidence, d.Reason)
		assert.InDelta(t, 0.2, d.Confidence, 1e-9)
	})

	t.Run("invalid prediction", func(t *testing.T) {
		_, err := newTestEngine(t).Decide(ctx, Request{
			Predictions: []domain.BackendPrediction{pred("fasttext", "es", 1.5)},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidPrediction)
	})

	t.Run("top_k out of range", func(t *testing.T) {
		_, err := newTestEngine(t).Decide(ctx, Request{
			Predictions: []domain.BackendPrediction{pred("fasttext", "es", 0.9)},
			TopK:        units.MaxTopK + 1,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})

	t.Run("top_k lists ranked candidates", func(t *testing.T) {
		d, err := newTestEngine(t).Decide(ctx, Request{
			Predictions: []domain.BackendPrediction{
				pred("fasttext", "fr", 0.9),
				pred("lingua", "it", 0.6),
				pred("langid", "de", 0.3),
			},
			TopK: 2,
		})
		require.NoError(t, err)
		require.Len(t, d.Candidates, 2)
		assert.Equal(t, "fr", d.Candidates[0].Language)
		assert.Equal(t, "it", d.Candidates[1].Language)
	})

	t.Run("script languages break a tie", func(t *testing.T) {
		e := newTestEngine(t, WithScriptDetector(fakeScripts{script: "Latn", languages: []string{"pt"}}))
		d, err := e.Decide(ctx, Request{
			Text: "ok",
			Predictions: []domain.BackendPrediction{
				pred("fasttext", "es", 0.5),
				pred("lingua", "pt", 0.5),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "pt", d.Language)
		assert.InDelta(t, 0.35, d.Confidence, 1e-9)
	})

	t.Run("request script languages win over detector", func(t *testing.T) {
		e := newTestEngine(t, WithScriptDetector(fakeScripts{languages: []string{"pt"}}))
		d, err := e.Decide(ctx, Request{
			Text: "ok",
			Predictions: []domain.BackendPrediction{
				pred("fasttext", "es", 0.5),
				pred("lingua", "pt", 0.5),
			},
			ScriptLanguages: []string{"es"},
		})
		require.NoError(t, err)
		assert.Equal(t, "es", d.Language)
	})

	t.Run("confusion markers decide between es and pt", func(t *testing.T) {
		d, err := newTestEngine(t).Decide(ctx, Request{
			Text: "eu tenho muito trabalho agora",
			Predictions: []domain.BackendPrediction{
				pred("fasttext", "es", 0.55),
				pred("lingua", "pt", 0.5),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "pt", d.Language)
	})
}

func TestEngine_DecideHints(t *testing.T) {
	ctx := context.Background()
	preds := []domain.BackendPrediction{pred("fasttext", "es", 0.6)}

	t.Run("request hint", func(t *testing.T) {
		d, err := newTestEngine(t).Decide(ctx, Request{
			Predictions: preds,
			Hint:        &domain.Hint{Language: "fr", Strength: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "fr", d.Language)
		assert.True(t, d.Reliable)
		assert.InDelta(t, 0.75, d.Confidence, 1e-9)
	})

	t.Run("hint lookup", func(t *testing.T) {
		e := newTestEngine(t, WithHintLookup(fakeHints{hint: domain.Hint{Language: "fr", Strength: 0.5}, found: true}))
		d, err := e.Decide(ctx, Request{Predictions: preds})
		require.NoError(t, err)
		assert.Equal(t, "fr", d.Language)
		// hint confidence 0.95 at weight 3 against es 0.6 at weight 1.
		assert.InDelta(t, 0.95*3/4, d.Confidence, 1e-9)
	})

	t.Run("undetermined hint ignored", func(t *testing.T) {
		d, err := newTestEngine(t).Decide(ctx, Request{
			Predictions: preds,
			Hint:        &domain.Hint{Language: domain.LangUndetermined, Strength: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "es", d.Language)
	})

	t.Run("lookup failure is logged and ignored", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		e := newTestEngine(t,
			WithLogger(zap.New(core)),
			WithHintLookup(fakeHints{err: errors.New("dictionary offline")}),
		)
		d, err := e.Decide(ctx, Request{Predictions: preds})
		require.NoError(t, err)
		assert.Equal(t, "es", d.Language)
		assert.Equal(t, 1, logs.FilterMessage("hint lookup failed").Len())
	})

	t.Run("caller weights are not modified", func(t *testing.T) {
		weights := map[string]float64{"fasttext": 1}
		_, err := newTestEngine(t).Decide(ctx, Request{
			Predictions: preds,
			Weights:     weights,
			Hint:        &domain.Hint{Language: "fr", Strength: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"fasttext": 1}, weights)
	})
}

func TestEngine_DecideAllowList(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Stages = []StageConfig{{ID: "verdict", Type: units.TypeVerdict}}
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	d, err := e.Decide(context.Background(), Request{
		Predictions:      []domain.BackendPrediction{pred("fasttext", "es", 0.9)},
		AllowedLanguages: []string{"en", "fr"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LangUndetermined, d.Language)
	assert.Equal(t, domain.ReasonNotAllowed, d.Reason)
}

func TestEngine_DecideAllowListDefaultStages(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	t.Run("disallowed winner", func(t *testing.T) {
		d, err := e.Decide(ctx, Request{
			Predictions:      []domain.BackendPrediction{pred("fasttext", "fr", 0.9)},
			AllowedLanguages: []string{"en"},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LangUndetermined, d.Language)
		assert.Equal(t, domain.ReasonNotAllowed, d.Reason)
	})

	t.Run("allowed language wins", func(t *testing.T) {
		d, err := e.Decide(ctx, Request{
			Predictions: []domain.BackendPrediction{
				pred("fasttext", "fr", 0.9),
				pred("lingua", "en", 0.8),
				pred("langid", "en", 0.7),
			},
			AllowedLanguages: []string{"en"},
		})
		require.NoError(t, err)
		assert.Equal(t, "en", d.Language)
		assert.Equal(t, domain.ReasonNone, d.Reason)
	})
}

func TestEngine_DecideStrategies(t *testing.T) {
	preds := []domain.BackendPrediction{
		pred("fasttext", "de", 0.9),
		pred("lingua", "de", 0.7),
		pred("cld3", "nl", 0.95),
	}
	for _, name := range []string{"hard", "soft", "weighted", "consensus"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			cfg.Strategy = StrategyConfig{Name: name}
			e, err := NewEngine(cfg)
			require.NoError(t, err)

			d, err := e.Decide(context.Background(), Request{Predictions: preds})
			require.NoError(t, err)
			assert.Equal(t, "de", d.Language)
			assert.Equal(t, name, d.Strategy)
		})
	}
}

func TestEngine_DecideSession(t *testing.T) {
	ctx := context.Background()
	metrics := newRecordingMetrics()
	e := newTestEngine(t, WithMetrics(metrics))
	store, err := e.NewSessionStore()
	require.NoError(t, err)

	tied := []domain.BackendPrediction{
		pred("fasttext", "es", 0.5),
		pred("lingua", "pt", 0.5),
	}

	// Without history the tie scores 0.25 and abstains.
	d, err := e.Decide(ctx, Request{Text: "ok", Predictions: tied})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonLowConfidence, d.Reason)

	d, err = e.DecideSession(ctx, store, "chat-1", Request{
		Text:        "hola, necesito ayuda",
		Predictions: []domain.BackendPrediction{pred("fasttext", "es", 0.9)},
	})
	require.NoError(t, err)
	require.Equal(t, "es", d.Language)

	d, err = e.DecideSession(ctx, store, "chat-1", Request{Text: "ok", Predictions: tied})
	require.NoError(t, err)
	assert.Equal(t, "es", d.Language)
	assert.InDelta(t, 0.25+0.15, d.Confidence, 1e-9)

	snap, ok := store.Snapshot("chat-1")
	require.True(t, ok)
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, "es", snap.Turns[1].Language)
	assert.Equal(t, 1.0, metrics.gauges[ports.MetricActiveSessions])

	t.Run("undetermined decisions are not recorded", func(t *testing.T) {
		_, err := e.DecideSession(ctx, store, "chat-2", Request{Text: "ok", Predictions: tied})
		require.NoError(t, err)
		snap, ok := store.Snapshot("chat-2")
		require.True(t, ok)
		assert.Empty(t, snap.Turns)
	})

	t.Run("errors leave the session untouched", func(t *testing.T) {
		_, err := e.DecideSession(ctx, store, "chat-1", Request{
			Predictions: []domain.BackendPrediction{pred("", "es", 0.9)},
		})
		require.ErrorIs(t, err, domain.ErrInvalidPrediction)
		snap, _ := store.Snapshot("chat-1")
		assert.Len(t, snap.Turns, 2)
	})

	t.Run("argument checks", func(t *testing.T) {
		_, err := e.DecideSession(ctx, nil, "x", Request{})
		assert.Error(t, err)
		_, err = e.DecideSession(ctx, store, "", Request{})
		assert.Error(t, err)
	})
}

func TestEngine_DecideSessionConcurrent(t *testing.T) {
	e := newTestEngine(t)
	store, err := conversation.NewStore(conversation.Options{MaxTurns: 50, DecayFactor: 0.9})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.DecideSession(context.Background(), store, "shared", Request{
				Text:        "bonjour",
				Predictions: []domain.BackendPrediction{pred("fasttext", "fr", 0.9)},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, ok := store.Snapshot("shared")
	require.True(t, ok)
	assert.Len(t, snap.Turns, 20)
}

func TestEngine_ConcurrentDecide(t *testing.T) {
	e := newTestEngine(t)

	var wg sync.WaitGroup
	ids := make([]string, 32)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := e.Decide(context.Background(), Request{
				Predictions: []domain.BackendPrediction{pred("fasttext", "ja", 0.8)},
			})
			assert.NoError(t, err)
			ids[i] = d.ID
		}()
	}
	wg.Wait()

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, len(ids))
}
