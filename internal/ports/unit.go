// Package ports defines the contracts between the decision core and the
// components around it: pipeline units, detection backends and the
// observability sinks. Infrastructure packages implement these interfaces.
package ports

import (
	"context"

	"github.com/ahrav/go-langvote/internal/domain"
)

// Unit is one stage of the decision pipeline. Each Unit reads the scores
// and request inputs from State and returns a new State with its
// refinement applied.
// Units must be stateless and safe for concurrent execution.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used for logging, tracing and configuration.
	Name() string

	// Execute performs the unit's transformation on the provided State.
	// The original State must not be modified.
	//
	// Example:
	//
	//	next, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return domain.State{}, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks that the unit is properly configured.
	// It is called once while the pipeline is assembled.
	Validate() error
}

// UnitFactory builds a Unit from an identifier and loosely typed
// parameters, typically decoded from YAML or TOML configuration.
type UnitFactory func(id string, params map[string]any) (Unit, error)

// UnitRegistry creates pipeline units by type name.
type UnitRegistry interface {
	// CreateUnit builds a unit of unitType named id.
	CreateUnit(unitType string, id string, params map[string]any) (Unit, error)

	// RegisterUnitFactory adds or replaces the factory for unitType.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// SupportedTypes lists the registered unit types in lexical order.
	SupportedTypes() []string
}
