package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBackendError tests message formatting, unwrapping and retry logic.
func TestBackendError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewBackendError("fasttext", "Detect", ErrBackendUnavailable)

		assert.Equal(t, "backend error: backend=fasttext, operation=Detect, err=backend unavailable", err.Error())
		assert.Equal(t, "fasttext", err.Backend)
		assert.True(t, errors.Is(err, ErrBackendUnavailable))
	})

	t.Run("retryable errors", func(t *testing.T) {
		for _, base := range []error{ErrRateLimited, ErrBackendUnavailable, ErrTimeout} {
			err := NewBackendError("lingua", "Detect", base)
			assert.True(t, err.IsRetryable(), "%v should be retryable", base)
		}

		for _, base := range []error{ErrInvalidResponse, errors.New("boom")} {
			err := NewBackendError("lingua", "Detect", base)
			assert.False(t, err.IsRetryable(), "%v should not be retryable", base)
		}
	})

	t.Run("wrapped timeout", func(t *testing.T) {
		err := NewBackendError("cld3", "Detect", errors.Join(ErrTimeout, errors.New("deadline")))
		assert.True(t, err.IsRetryable())
	})
}
