package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while talking to detection
// backends.
var (
	// ErrBackendUnavailable indicates that a backend could not serve the request.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrRateLimited indicates that a backend call was rejected by a rate limiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that a backend call timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that a backend returned a prediction that
	// failed validation.
	ErrInvalidResponse = errors.New("invalid response")
)

// BackendError represents an error from a detection backend.
type BackendError struct {
	// Backend is the name of the backend that failed.
	Backend string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for BackendError.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: backend=%s, operation=%s, err=%v", e.Backend, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the call can be
// retried.
func (e *BackendError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrBackendUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewBackendError creates a new BackendError with the given details.
func NewBackendError(backend, operation string, err error) *BackendError {
	return &BackendError{
		Backend:   backend,
		Operation: operation,
		Err:       err,
	}
}
