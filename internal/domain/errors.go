package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the decision core.
var (
	// ErrKeyNotFound indicates that a stage needed a State value no earlier
	// stage produced.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidPrediction indicates that a backend prediction violates its
	// value constraints (empty source, confidence outside [0, 1], ...).
	ErrInvalidPrediction = errors.New("invalid prediction")
)

// MissingKeyError reports a State key a stage required but could not find.
type MissingKeyError struct {
	// Key is the name of the missing key.
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("state key %q not found", e.Key)
}

// Unwrap lets callers match with errors.Is(err, ErrKeyNotFound).
func (e *MissingKeyError) Unwrap() error { return ErrKeyNotFound }

// ValidationError collects every problem found while validating one entity.
type ValidationError struct {
	// Entity names what was validated, e.g. "EngineConfig".
	Entity string

	// Errors holds one message per problem, in discovery order.
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// Unwrap lets callers match any ValidationError against ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError records one problem.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf formats and records one problem.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// ErrOrNil returns e when it holds any problem and nil otherwise, so the
// result can be returned directly as an error.
func (e *ValidationError) ErrOrNil() error {
	if len(e.Errors) > 0 {
		return e
	}
	return nil
}

// NewValidationError starts an empty ValidationError for entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity}
}
