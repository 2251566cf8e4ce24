package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingKeyError(t *testing.T) {
	err := error(&MissingKeyError{Key: KeyScores.Name()})

	assert.Equal(t, `state key "scores" not found`, err.Error())
	assert.ErrorIs(t, err, ErrKeyNotFound)

	var target *MissingKeyError
	require.ErrorAs(t, fmt.Errorf("verdict: %w", err), &target)
	assert.Equal(t, "scores", target.Key)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("EngineConfig")
		err.AddError("missing strategy")

		assert.Equal(t, "invalid EngineConfig: missing strategy", err.Error())
		assert.Len(t, err.Errors, 1)
	})

	t.Run("multiple errors keep order", func(t *testing.T) {
		err := NewValidationError("ConsensusConfig")
		err.AddError("min_agreement must be at least 1")
		err.AddErrorf("unknown fallback %q", "majority")

		assert.Equal(t,
			`invalid ConsensusConfig: min_agreement must be at least 1; unknown fallback "majority"`,
			err.Error())
	})

	t.Run("no errors", func(t *testing.T) {
		assert.NoError(t, NewValidationError("Empty").ErrOrNil())
	})

	t.Run("matches invalid configuration", func(t *testing.T) {
		verr := NewValidationError("Weights")
		verr.AddError("negative weight")
		err := verr.ErrOrNil()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		var target *ValidationError
		require.ErrorAs(t, err, &target)
		assert.Equal(t, "Weights", target.Entity)
	})
}

func TestBackendPrediction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pred    BackendPrediction
		wantErr bool
	}{
		{name: "valid", pred: NewPrediction("fasttext", "en", 0.9)},
		{name: "empty source", pred: NewPrediction("", "en", 0.9), wantErr: true},
		{name: "empty language", pred: BackendPrediction{Source: "lingua", Confidence: 0.5}, wantErr: true},
		{name: "confidence above one", pred: NewPrediction("cld3", "fr", 1.2), wantErr: true},
		{name: "negative confidence", pred: NewPrediction("cld3", "fr", -0.1), wantErr: true},
		{
			name: "distribution entry out of range",
			pred: BackendPrediction{
				Source: "langid", Language: "de", Confidence: 0.6,
				Probabilities: map[string]float64{"de": 0.6, "nl": 1.5},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pred.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrediction)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBackendPrediction_Distribution(t *testing.T) {
	t.Run("predicted language first then lexical", func(t *testing.T) {
		p := BackendPrediction{
			Source: "lingua", Language: "pt", Confidence: 0.5,
			Probabilities: map[string]float64{"es": 0.3, "gl": 0.2, "pt": 0.5},
		}
		assert.Equal(t, []string{"pt", "es", "gl"}, p.Distribution().Languages())
	})

	t.Run("missing distribution becomes singleton", func(t *testing.T) {
		p := BackendPrediction{Source: "cld3", Language: "ja", Confidence: 0.7}
		d := p.Distribution()
		assert.Equal(t, 1, d.Len())
		assert.Equal(t, 0.7, d.Score("ja"))
	})

	t.Run("placeholder language is reported", func(t *testing.T) {
		assert.False(t, IsDetermined(LangUnknown))
		assert.False(t, IsDetermined(LangUndetermined))
		assert.False(t, IsDetermined(""))
		assert.True(t, IsDetermined("sv"))
	})
}
