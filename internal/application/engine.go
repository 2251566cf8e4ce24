package application

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-langvote/infrastructure/backends"
	"github.com/ahrav/go-langvote/infrastructure/units"
	"github.com/ahrav/go-langvote/internal/conversation"
	"github.com/ahrav/go-langvote/internal/domain"
	"github.com/ahrav/go-langvote/internal/ports"
)

// ErrNoDecision is returned when the pipeline finishes without a verdict.
var ErrNoDecision = errors.New("pipeline produced no decision")

// Request carries everything one decision needs. Only Predictions is
// required; the other fields refine the outcome.
type Request struct {
	// Text is the message being classified.
	Text string `json:"text"`

	// Predictions are the backend outputs to combine.
	Predictions []domain.BackendPrediction `json:"predictions"`

	// Weights overrides per-backend weights for this request.
	Weights map[string]float64 `json:"weights,omitempty"`

	// Context supplies conversation boosts. DecideSession sets it from the
	// session store.
	Context domain.ContextBooster `json:"-"`

	// ScriptLanguages lists languages consistent with the text's script.
	// When empty the engine asks its ScriptDetector, if any.
	ScriptLanguages []string `json:"script_languages,omitempty"`

	// AllowedLanguages restricts the possible outputs.
	AllowedLanguages []string `json:"allowed_languages,omitempty"`

	// Hint is a precomputed hint-dictionary match. When nil the engine asks
	// its HintLookup, if any.
	Hint *domain.Hint `json:"hint,omitempty"`

	// TopK overrides how many candidates the decision lists.
	TopK int `json:"top_k,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the collector for decision, stage and backend metrics.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithRegistry sets the registry stages are created from.
func WithRegistry(registry *UnitRegistry) Option {
	return func(e *Engine) { e.registry = registry }
}

// WithHintLookup sets the hint dictionary consulted when a request has no
// hint of its own.
func WithHintLookup(hints ports.HintLookup) Option {
	return func(e *Engine) { e.hints = hints }
}

// WithScriptDetector sets the detector consulted when a request has no
// script languages of its own.
func WithScriptDetector(scripts ports.ScriptDetector) Option {
	return func(e *Engine) { e.scripts = scripts }
}

// Engine turns backend predictions into a final language decision by
// running the configured vote and refinement stages. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	config   EngineConfig
	logger   *zap.Logger
	metrics  ports.MetricsCollector
	registry *UnitRegistry
	hints    ports.HintLookup
	scripts  ports.ScriptDetector
	tracer   trace.Tracer

	pipeline *Pipeline
	strategy string

	// middleware holds the prebuilt chain of each configured backend so
	// limiters and breakers persist across calls.
	middleware        map[string][]backends.Middleware
	defaultMiddleware []backends.Middleware
}

// NewEngine validates config and builds the decision pipeline.
func NewEngine(config EngineConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		config: config,
		logger: zap.NewNop(),
		tracer: otel.Tracer("decision-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewUnitRegistry(e.metrics)
	}

	if err := config.Validate(e.registry); err != nil {
		return nil, err
	}

	pipeline, err := e.buildPipeline()
	if err != nil {
		return nil, err
	}
	e.pipeline = pipeline
	e.buildMiddleware()

	e.logger.Debug("decision engine ready",
		zap.String("engine", config.Name),
		zap.String("strategy", e.strategy),
		zap.Strings("stages", pipeline.StageIDs()),
		zap.Int("backends", len(config.Backends)),
	)
	return e, nil
}

// NewDefaultEngine builds an engine from DefaultEngineConfig.
func NewDefaultEngine(opts ...Option) (*Engine, error) {
	return NewEngine(DefaultEngineConfig(), opts...)
}

func (e *Engine) buildPipeline() (*Pipeline, error) {
	pipeline := NewPipeline(e.config.Name, e.metrics)

	voteParams := maps.Clone(e.config.Strategy.Params)
	if voteParams == nil {
		voteParams = make(map[string]any, 1)
	}
	voteParams["strategy"] = e.config.Strategy.Name

	vote, err := e.registry.CreateUnit(units.TypeVote, units.TypeVote, voteParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create vote stage: %w", err)
	}
	if err := pipeline.Add(NewUnitAdapter(vote, units.TypeVote)); err != nil {
		return nil, err
	}
	e.strategy = e.config.Strategy.Name

	for _, st := range e.config.Stages {
		unit, err := e.registry.CreateUnit(st.Type, st.ID, st.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to create stage %s: %w", st.ID, err)
		}
		if err := pipeline.Add(NewUnitAdapter(unit, st.ID)); err != nil {
			return nil, fmt.Errorf("failed to add stage %s: %w", st.ID, err)
		}
	}
	return pipeline, nil
}

// buildMiddleware assembles the per-backend call chain, outermost first:
// tracing, metrics, retry, rate limit, circuit breaker, timeout, validation.
func (e *Engine) buildMiddleware() {
	defaultTimeout := time.Duration(e.config.BackendTimeoutMS) * time.Millisecond

	e.defaultMiddleware = []backends.Middleware{
		backends.Tracing(),
		backends.Metrics(e.metrics),
		backends.Timeout(defaultTimeout),
		backends.Validated(),
	}

	e.middleware = make(map[string][]backends.Middleware, len(e.config.Backends))
	for _, bc := range e.config.Backends {
		chain := []backends.Middleware{backends.Tracing(), backends.Metrics(e.metrics)}
		if bc.Retries > 0 {
			base := time.Duration(bc.RetryBaseMS) * time.Millisecond
			if base <= 0 {
				base = 50 * time.Millisecond
			}
			chain = append(chain, backends.Retry(bc.Retries, base, 20*base))
		}
		if bc.RateLimit > 0 {
			chain = append(chain, backends.RateLimit(rate.Limit(bc.RateLimit), max(bc.Burst, 1)))
		}
		if bc.CircuitBreaker.MaxFailures > 0 {
			cooldown := time.Duration(bc.CircuitBreaker.CooldownMS) * time.Millisecond
			chain = append(chain, backends.CircuitBreak(bc.CircuitBreaker.MaxFailures, cooldown))
		}
		timeout := defaultTimeout
		if bc.TimeoutMS > 0 {
			timeout = time.Duration(bc.TimeoutMS) * time.Millisecond
		}
		chain = append(chain, backends.Timeout(timeout), backends.Validated())
		e.middleware[bc.Name] = chain
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() EngineConfig { return e.config }

// Strategy returns the name of the voting strategy.
func (e *Engine) Strategy() string { return e.strategy }

// Stages returns the stage IDs in execution order, vote first.
func (e *Engine) Stages() []string { return e.pipeline.StageIDs() }

// NewSessionStore returns an empty session store using the engine's
// conversation options.
func (e *Engine) NewSessionStore() (*conversation.Store, error) {
	return conversation.NewStore(e.config.Context)
}

// Decide combines the request's predictions into a decision. Invalid
// predictions are rejected with domain.ErrInvalidPrediction; a request
// without predictions yields an undetermined no_signal decision.
func (e *Engine) Decide(ctx context.Context, req Request) (*domain.Decision, error) {
	start := time.Now()
	executionID := uuid.NewString()

	ctx, span := e.tracer.Start(ctx, "Engine.Decide",
		trace.WithAttributes(
			attribute.String("engine.name", e.config.Name),
			attribute.String("engine.strategy", e.strategy),
			attribute.String("execution.id", executionID),
			attribute.Int("request.predictions", len(req.Predictions)),
		),
	)
	defer span.End()

	decision, err := e.decide(ctx, executionID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("decision failed",
			zap.String("execution_id", executionID),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("decision.language", decision.Language),
		attribute.Float64("decision.confidence", decision.Confidence),
		attribute.String("decision.reason", string(decision.Reason)),
	)
	e.record(decision, time.Since(start))
	return decision, nil
}

func (e *Engine) decide(ctx context.Context, executionID string, req Request) (*domain.Decision, error) {
	for i, p := range req.Predictions {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
	}
	if req.TopK < 0 || req.TopK > units.MaxTopK {
		return nil, fmt.Errorf("%w: top_k %d outside [0, %d]",
			domain.ErrInvalidConfiguration, req.TopK, units.MaxTopK)
	}

	predictions := slices.Clone(req.Predictions)
	weights := maps.Clone(req.Weights)

	if hint, ok := e.resolveHint(ctx, req); ok {
		predictions = append(predictions, e.hintPrediction(hint))
		if weights == nil {
			weights = make(map[string]float64, 1)
		}
		weights[HintSource] = e.config.HintWeight
	}

	scriptLanguages := req.ScriptLanguages
	if len(scriptLanguages) == 0 && e.scripts != nil {
		_, scriptLanguages = e.scripts.ScriptLanguages(req.Text)
	}

	state := domain.NewState().WithExecutionContext(domain.ExecutionContext{
		EngineID:    e.config.Name,
		ExecutionID: executionID,
	})
	updates := map[string]any{
		domain.KeyText.Name():        req.Text,
		domain.KeyPredictions.Name(): predictions,
	}
	if weights != nil {
		updates[domain.KeyWeights.Name()] = weights
	}
	if req.Context != nil {
		updates[domain.KeyContextBooster.Name()] = req.Context
	}
	if len(scriptLanguages) > 0 {
		updates[domain.KeyScriptLanguages.Name()] = scriptLanguages
	}
	if len(req.AllowedLanguages) > 0 {
		updates[domain.KeyAllowedLanguages.Name()] = req.AllowedLanguages
	}
	if req.TopK > 0 {
		updates[domain.KeyTopK.Name()] = req.TopK
	}
	state = state.WithMultiple(updates)

	out, err := e.pipeline.Execute(ctx, state)
	if err != nil {
		return nil, err
	}

	decision, ok := domain.Get(out, domain.KeyDecision)
	if !ok || decision == nil {
		return nil, fmt.Errorf("engine %s: %w", e.config.Name, ErrNoDecision)
	}

	if ce := e.logger.Check(zap.DebugLevel, "decision made"); ce != nil {
		stages, _ := domain.Get(out, domain.KeyStageTrace)
		ce.Write(
			zap.String("execution_id", executionID),
			zap.String("language", decision.Language),
			zap.Float64("confidence", decision.Confidence),
			zap.String("reason", string(decision.Reason)),
			zap.Strings("stages", stages),
			zap.Int("predictions", len(predictions)),
		)
	}
	return decision, nil
}

// resolveHint returns the request's hint or, failing that, the hint
// lookup's match. Lookup failures are logged and ignored.
func (e *Engine) resolveHint(ctx context.Context, req Request) (domain.Hint, bool) {
	if req.Hint != nil {
		return *req.Hint, domain.IsDetermined(req.Hint.Language)
	}
	if e.hints == nil {
		return domain.Hint{}, false
	}

	hint, ok, err := e.hints.Lookup(ctx, req.Text)
	if err != nil {
		e.logger.Warn("hint lookup failed", zap.Error(err))
		return domain.Hint{}, false
	}
	return hint, ok && domain.IsDetermined(hint.Language)
}

// hintPrediction converts a hint into a reliable synthetic prediction
// with confidence min(1, 0.9 + 0.1*strength).
func (e *Engine) hintPrediction(hint domain.Hint) domain.BackendPrediction {
	strength := min(max(hint.Strength, 0), 1)
	return domain.NewPrediction(HintSource, hint.Language, min(1, 0.9+0.1*strength))
}

func (e *Engine) record(decision *domain.Decision, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	reason := string(decision.Reason)
	if reason == "" {
		reason = "none"
	}
	e.metrics.RecordCounter(ports.MetricDecisions, 1, map[string]string{
		"strategy": decision.Strategy,
		"reason":   reason,
	})
	e.metrics.RecordHistogram(ports.MetricDecisionConfidence, decision.Confidence, map[string]string{
		"strategy": decision.Strategy,
	})
	e.metrics.RecordLatency(ports.MetricDecideLatency, elapsed, map[string]string{
		"engine": e.config.Name,
	})
}

// DecideSession decides with the session's conversation history as the
// context booster, then records a determined decision as the session's
// newest turn. The read and the append happen under the session lock.
func (e *Engine) DecideSession(
	ctx context.Context,
	store *conversation.Store,
	sessionID string,
	req Request,
) (*domain.Decision, error) {
	if store == nil {
		return nil, fmt.Errorf("session store cannot be nil")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	var decision *domain.Decision
	err := store.Update(sessionID, func(c *conversation.Context) error {
		req.Context = c
		d, err := e.Decide(ctx, req)
		if err != nil {
			return err
		}
		if domain.IsDetermined(d.Language) {
			c.AddTurn(req.Text, d.Language, d.Confidence)
		}
		decision = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordGauge(ports.MetricActiveSessions, float64(store.Len()), nil)
	}
	return decision, nil
}

// Detect collects predictions from backends for req.Text, appends them to
// any predictions already in req and decides.
func (e *Engine) Detect(ctx context.Context, req Request, detectors ...ports.Backend) (*domain.Decision, error) {
	collected, err := e.Collect(ctx, req.Text, detectors...)
	if err != nil {
		return nil, err
	}
	req.Predictions = append(slices.Clone(req.Predictions), collected...)
	return e.Decide(ctx, req)
}
