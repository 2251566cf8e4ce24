package application

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-langvote/infrastructure/units"
	"github.com/ahrav/go-langvote/infrastructure/voting"
	"github.com/ahrav/go-langvote/internal/conversation"
	"github.com/ahrav/go-langvote/internal/domain"
)

// Engine configuration defaults.
const (
	// DefaultHintWeight is the vote weight of a hint-derived prediction.
	DefaultHintWeight = 3.0

	// DefaultBackendTimeoutMS bounds a single backend call when a backend
	// does not set its own timeout.
	DefaultBackendTimeoutMS = 2000

	// HintSource is the prediction source assigned to hint lookups.
	HintSource = "hints"
)

// EngineConfig is the declarative description of a decision engine: the
// voting strategy, the ordered refinement stages that follow the vote, the
// conversation defaults and the backends Collect may fan out to.
type EngineConfig struct {
	// Version is the configuration schema version (X.Y.Z).
	Version string `yaml:"version" toml:"version" json:"version" validate:"required,semver"`

	// Name identifies the engine in logs, metrics and the execution context.
	Name string `yaml:"name" toml:"name" json:"name" validate:"required,min=1,max=255"`

	// Strategy selects and configures the voting policy.
	Strategy StrategyConfig `yaml:"strategy" toml:"strategy" json:"strategy"`

	// Stages lists the units run after the vote, in order. The last stage
	// must be a verdict.
	Stages []StageConfig `yaml:"stages" toml:"stages" json:"stages" validate:"required,min=1,max=32,dive"`

	// Context configures conversation contexts created for sessions.
	Context conversation.Options `yaml:"context" toml:"context" json:"context"`

	// HintWeight is the explicit weight given to hint-derived predictions.
	HintWeight float64 `yaml:"hint_weight" toml:"hint_weight" json:"hint_weight" validate:"gt=0,lte=100"`

	// BackendTimeoutMS is the default per-call backend timeout.
	BackendTimeoutMS int `yaml:"backend_timeout_ms" toml:"backend_timeout_ms" json:"backend_timeout_ms" validate:"min=0,max=600000"`

	// Backends configures resilience middleware per backend name.
	Backends []BackendConfig `yaml:"backends" toml:"backends" json:"backends" validate:"max=64,dive"`
}

// StrategyConfig names a voting strategy and its parameters.
type StrategyConfig struct {
	// Name is one of hard, soft, weighted or consensus.
	Name string `yaml:"name" toml:"name" json:"name" validate:"required,strategy"`

	// Params holds strategy-specific fields such as unreliable_penalty or
	// min_agreement.
	Params map[string]any `yaml:"params" toml:"params" json:"params,omitempty"`
}

// StageConfig describes one post-vote unit.
type StageConfig struct {
	// ID is unique within the engine and names the stage in traces.
	ID string `yaml:"id" toml:"id" json:"id" validate:"required,stageid,max=100"`

	// Type selects the unit implementation from the registry.
	Type string `yaml:"type" toml:"type" json:"type" validate:"required"`

	// Params holds unit-specific fields.
	Params map[string]any `yaml:"params" toml:"params" json:"params,omitempty"`
}

// BackendConfig sets the middleware applied to a named backend.
type BackendConfig struct {
	// Name matches ports.Backend.Name.
	Name string `yaml:"name" toml:"name" json:"name" validate:"required,max=100"`

	// RateLimit is the sustained calls per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit" validate:"min=0"`

	// Burst is the limiter bucket size; defaults to 1 when limiting.
	Burst int `yaml:"burst" toml:"burst" json:"burst" validate:"min=0,max=10000"`

	// TimeoutMS overrides EngineConfig.BackendTimeoutMS.
	TimeoutMS int `yaml:"timeout_ms" toml:"timeout_ms" json:"timeout_ms" validate:"min=0,max=600000"`

	// Retries is the number of retries after the first attempt.
	Retries int `yaml:"retries" toml:"retries" json:"retries" validate:"min=0,max=10"`

	// RetryBaseMS is the base delay of the exponential backoff.
	RetryBaseMS int `yaml:"retry_base_ms" toml:"retry_base_ms" json:"retry_base_ms" validate:"min=0,max=60000"`

	// CircuitBreaker trips the backend open after repeated failures.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" toml:"circuit_breaker" json:"circuit_breaker"`
}

// CircuitBreakerConfig configures a per-backend circuit breaker. A zero
// MaxFailures disables it.
type CircuitBreakerConfig struct {
	MaxFailures int `yaml:"max_failures" toml:"max_failures" json:"max_failures" validate:"min=0,max=1000"`
	CooldownMS  int `yaml:"cooldown_ms" toml:"cooldown_ms" json:"cooldown_ms" validate:"min=0,max=3600000"`
}

// DefaultStages returns the standard refinement chain.
func DefaultStages() []StageConfig {
	return []StageConfig{
		{ID: units.TypeConfusion, Type: units.TypeConfusion},
		{ID: units.TypeContextBoost, Type: units.TypeContextBoost},
		{ID: units.TypeTieBreak, Type: units.TypeTieBreak},
		{ID: units.TypeVerdict, Type: units.TypeVerdict},
	}
}

// DefaultEngineConfig returns a weighted-voting engine running the
// standard stages with default parameters.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Version:          "1.0.0",
		Name:             "langvote",
		Strategy:         StrategyConfig{Name: voting.NameWeighted},
		Stages:           DefaultStages(),
		Context:          conversation.DefaultOptions(),
		HintWeight:       DefaultHintWeight,
		BackendTimeoutMS: DefaultBackendTimeoutMS,
	}
}

// Backend returns the configuration for name and whether one exists.
func (c *EngineConfig) Backend(name string) (BackendConfig, bool) {
	i := slices.IndexFunc(c.Backends, func(b BackendConfig) bool { return b.Name == name })
	if i < 0 {
		return BackendConfig{}, false
	}
	return c.Backends[i], true
}

// configValidator is shared by every config validation; the validator
// caches struct metadata and is safe for concurrent use.
var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		panic(fmt.Sprintf("application: %v", err))
	}
	return v
}

// Validate checks struct constraints and the cross-field rules of the
// configuration against registry. A nil registry uses the builtin stages.
func (c *EngineConfig) Validate(registry *UnitRegistry) error {
	if err := configValidator.Struct(c); err != nil {
		return describeValidationErrors(err)
	}
	if registry == nil {
		registry = NewUnitRegistry(nil)
	}
	return c.validateSemantics(registry)
}

// validateSemantics enforces rules struct tags cannot express: unique
// stage and backend names, registered stage types, a trailing verdict and
// a consensus threshold the configured backends can reach.
func (c *EngineConfig) validateSemantics(registry *UnitRegistry) error {
	verr := domain.NewValidationError("EngineConfig")

	seen := make(map[string]struct{}, len(c.Stages))
	for i, st := range c.Stages {
		if _, dup := seen[st.ID]; dup {
			verr.AddErrorf("duplicate stage ID %q", st.ID)
		}
		seen[st.ID] = struct{}{}

		switch {
		case st.Type == units.TypeVote:
			verr.AddErrorf("stage %s: the vote runs implicitly and cannot be listed", st.ID)
		case !registry.Has(st.Type):
			verr.AddErrorf("stage %s: unknown type %q%s", st.ID, st.Type,
				didYouMean(st.Type, registry.SupportedTypes()))
		case st.Type == units.TypeVerdict && i != len(c.Stages)-1:
			verr.AddErrorf("stage %s: verdict must be the last stage", st.ID)
		}
	}
	if n := len(c.Stages); n > 0 && c.Stages[n-1].Type != units.TypeVerdict {
		verr.AddErrorf("last stage must be a %s, got %q", units.TypeVerdict, c.Stages[n-1].Type)
	}

	backends := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if _, dup := backends[b.Name]; dup {
			verr.AddErrorf("duplicate backend %q", b.Name)
		}
		backends[b.Name] = struct{}{}
	}

	strategy, err := voting.Create(c.Strategy.Name, c.Strategy.Params)
	if err != nil {
		verr.AddErrorf("strategy %s: %v", c.Strategy.Name, err)
	} else if cons, ok := strategy.(*voting.Consensus); ok && len(c.Backends) > 0 &&
		cons.MinAgreement() > len(c.Backends) {
		verr.AddErrorf("consensus min_agreement %d exceeds the %d configured backends",
			cons.MinAgreement(), len(c.Backends))
	}

	return verr.ErrOrNil()
}

// describeValidationErrors turns validator field errors into a
// domain.ValidationError, adding a spelling suggestion to unknown strategy
// names.
func describeValidationErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	verr := domain.NewValidationError("EngineConfig")
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "strategy":
			name := fmt.Sprint(fe.Value())
			verr.AddErrorf("%s: unknown voting strategy %q%s", fe.Namespace(), name,
				didYouMean(name, voting.Names()))
		case "semver":
			verr.AddErrorf("%s: %q is not a semantic version (X.Y.Z)", fe.Namespace(), fe.Value())
		default:
			verr.AddErrorf("%s: failed %q constraint (param %q, value %v)",
				fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
	}
	return verr
}

// registerCustomValidators registers the semver, strategy and stageid tags.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("strategy", validateStrategyName); err != nil {
		return fmt.Errorf("failed to register strategy validator: %w", err)
	}
	if err := v.RegisterValidation("stageid", validateStageID); err != nil {
		return fmt.Errorf("failed to register stageid validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z where X, Y and Z are non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	if err != nil || n != 3 || major < 0 || minor < 0 || patch < 0 {
		return false
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch) == value
}

func validateStrategyName(fl validator.FieldLevel) bool {
	return slices.Contains(voting.Names(), fl.Field().String())
}

// validateStageID accepts lowercase letters, digits, '_' and '-'.
func validateStageID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return id != ""
}
