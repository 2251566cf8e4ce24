package ports

import (
	"context"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Executable is any component that can run inside a decision pipeline.
type Executable interface {
	// Execute processes the given state and returns the updated state.
	// Execute must be safe for concurrent use when called on different states.
	//
	// IMPORTANT: The input state is immutable and MUST NOT be modified.
	// domain.State uses copy-on-write semantics; use domain.With() or
	// state.WithMultiple() to build the returned state.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the unique identifier of this executable. It must remain
	// constant for the executable's lifetime.
	ID() string
}

// Pipeline runs executables in strict order, feeding each executable's
// output state into the next one.
type Pipeline interface {
	Executable

	// Add appends an executable to the end of the pipeline.
	// Add returns an error if the executable is nil or its ID is already used.
	Add(exec Executable) error

	// Executables returns the ordered executables of this pipeline.
	// The returned slice should not be modified by callers.
	Executables() []Executable
}
