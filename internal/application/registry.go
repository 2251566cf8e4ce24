package application

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-langvote/infrastructure/units"
	"github.com/ahrav/go-langvote/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*UnitRegistry)(nil)

// ErrUnknownUnitType is returned when no factory is registered for a
// stage type.
var ErrUnknownUnitType = errors.New("unsupported unit type")

// UnitRegistry creates decision stages by type name. It comes with the
// builtin stages registered and accepts custom ones at runtime.
type UnitRegistry struct {
	// factories maps unit type strings to their factory functions.
	factories map[string]ports.UnitFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
	// metrics is injected into stages that report counters.
	metrics ports.MetricsCollector
}

// NewUnitRegistry creates a registry with the builtin stage types. metrics
// may be nil.
func NewUnitRegistry(metrics ports.MetricsCollector) *UnitRegistry {
	r := &UnitRegistry{
		factories: make(map[string]ports.UnitFactory),
		metrics:   metrics,
	}
	r.registerBuiltinFactories()
	return r
}

func (r *UnitRegistry) registerBuiltinFactories() {
	metrics := r.metrics

	r.factories[units.TypeVote] = func(id string, params map[string]any) (ports.Unit, error) {
		return units.CreateVoteUnit(id, params)
	}
	r.factories[units.TypeConfusion] = func(id string, params map[string]any) (ports.Unit, error) {
		u, err := units.CreateConfusionUnit(id, params)
		if err != nil {
			return nil, err
		}
		return u.WithMetrics(metrics), nil
	}
	r.factories[units.TypeContextBoost] = func(id string, params map[string]any) (ports.Unit, error) {
		return units.CreateContextBoostUnit(id, params)
	}
	r.factories[units.TypeTieBreak] = func(id string, params map[string]any) (ports.Unit, error) {
		return units.CreateTieBreakUnit(id, params)
	}
	r.factories[units.TypeVerdict] = func(id string, params map[string]any) (ports.Unit, error) {
		return units.CreateVerdictUnit(id, params)
	}
}

// CreateUnit builds a unit of unitType. Unknown types fail with
// ErrUnknownUnitType and a spelling suggestion when one is close.
func (r *UnitRegistry) CreateUnit(unitType string, id string, params map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q%s", ErrUnknownUnitType, unitType, didYouMean(unitType, r.SupportedTypes()))
	}
	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}
	if params == nil {
		params = make(map[string]any)
	}

	unit, err := factory(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("unit %s of type %s failed validation: %w", id, unitType, err)
	}
	return unit, nil
}

// RegisterUnitFactory registers or replaces the factory for unitType.
func (r *UnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[unitType] = factory
	return nil
}

// SupportedTypes returns the registered unit types in lexical order.
func (r *UnitRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Has reports whether unitType is registered.
func (r *UnitRegistry) Has(unitType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[unitType]
	return ok
}

// didYouMean returns a " (did you mean ...?)" suffix naming the candidate
// closest to name, or "" when nothing is close enough to be a typo.
func didYouMean(name string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/3) {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}
