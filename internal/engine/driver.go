package engine

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/rcve/internal/llm"
	"github.com/haasonsaas/rcve/internal/observability"
	"github.com/haasonsaas/rcve/internal/planner"
	"github.com/haasonsaas/rcve/internal/router"
	"github.com/haasonsaas/rcve/internal/tools"
	"github.com/haasonsaas/rcve/internal/validator"
	"github.com/haasonsaas/rcve/pkg/rcve"
)

// Driver is the RCVE's Loop Driver: it threads an EnrichmentState through
// repeated Planner -> Executor -> Validator -> Router passes for a single
// request, starting from an iteration-0 Validator pass over the static
// context alone, until the Router reaches a terminal decision.
type Driver struct {
	catalog        map[string]tools.Tool
	planner        *planner.Planner
	validatorLLM   llm.Provider
	validatorModel string
	config         Config
	tracer         *observability.Tracer
	metrics        *observability.Metrics
}

// Option configures optional Driver behavior.
type Option func(*Driver)

// WithObservability attaches a Tracer and Metrics to the Driver. Either
// argument may be nil. The Tracer opens one span per enrichment iteration,
// one per Planner/Validator LLM call, and (via the per-request Registry) one
// per tool invocation; the Metrics records a call counter per tool.
func WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) Option {
	return func(d *Driver) {
		d.tracer = tracer
		d.metrics = metrics
	}
}

// New builds a Driver. catalog is the shared tool catalog a fresh,
// per-request Registry is built from on every Run (spec §5 — the Registry
// is owned by the request, never a process-global singleton). The
// Validator is likewise rebuilt per run, since its confidence thresholds
// can be overridden per request.
func New(catalog map[string]tools.Tool, p *planner.Planner, validatorLLM llm.Provider, validatorModel string, config Config, opts ...Option) *Driver {
	d := &Driver{catalog: catalog, planner: p, validatorLLM: validatorLLM, validatorModel: validatorModel, config: config}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drives a single request to a terminal Outcome.
func (d *Driver) Run(ctx context.Context, in rcve.RunInput) (rcve.Outcome, error) {
	cfg := d.config.WithOverride(in.Config)
	registry := tools.NewRegistry(d.catalog, cfg.ToolBudgets, cfg.ToolTimeout, tools.WithObservability(d.tracer, d.metrics))
	executor := NewExecutor(registry)
	v := validator.New(d.validatorLLM, d.validatorModel, validator.WithThresholds(cfg.ConfidenceThresholds))

	staticSummary := renderStaticSummary(in)
	dc := make(rcve.DynamicContext)
	for k, val := range in.StaticContext {
		dc = dc.Merge(k, rcve.Observation{Value: val, SourceTool: "static_context", Confidence: 1.0, Iteration: 0})
	}

	state := rcve.EnrichmentState{
		Iteration:      0,
		DynamicContext: dc,
		ToolUsage:      registry.Usage(),
		TokenBudget:    cfg.TokenBudget,
	}

	var result rcve.ValidationResult
	err := d.traceLLMCall(ctx, d.validatorLLM.Name(), d.validatorModel, func(ctx context.Context) error {
		r, verr := validateWithRetry(ctx, v, in.RawRequest, state)
		result = r
		return verr
	})
	if err != nil {
		return d.escalate(in, state, rcve.StopValidatorParseError), nil
	}
	decision := router.Route(state, result, cfg.MaxIterations)
	state.LastMissing = result.Missing
	state.LastConfidence = result.Confidence
	state.Category = result.Category
	state.Subcategories = result.Subcategories

	switch decision.Action {
	case router.ActionArchitect:
		return d.complete(in, state), nil
	case router.ActionEscalate:
		return d.escalate(in, state, decision.StopReason), nil
	}

	for {
		if ctx.Err() != nil {
			return d.escalate(in, state, rcve.StopDeadline), nil
		}

		state.Iteration++
		outcome, terminal := d.runIteration(ctx, in, &state, staticSummary, registry, executor, v, cfg)
		if terminal {
			return outcome, nil
		}
	}
}

// runIteration runs one Planner -> Executor -> Validator -> Router pass,
// opening one enrichment-iteration trace span for the whole pass and one
// LLM-call span each for the Planner and Validator calls inside it. It
// mutates state in place and reports whether the pass produced a terminal
// Outcome.
func (d *Driver) runIteration(ctx context.Context, in rcve.RunInput, state *rcve.EnrichmentState, staticSummary string, registry *tools.Registry, executor *Executor, v *validator.Validator, cfg Config) (rcve.Outcome, bool) {
	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.TraceEnrichmentIteration(ctx, in.RequestID, state.Iteration, string(state.Category))
		defer span.End()
	}

	missingBefore := state.LastMissing

	var plan rcve.EnrichmentPlan
	_ = d.traceLLMCall(ctx, d.planner.ProviderName(), d.planner.Model(), func(ctx context.Context) error {
		p, perr := d.planner.Plan(ctx, planner.Input{
			RawRequest:     in.RawRequest,
			StaticSummary:  staticSummary,
			WebsiteURL:     in.WebsiteURL,
			LastMissing:    state.LastMissing,
			AvailableTools: registry.AvailableTools(),
			DynamicContext: state.DynamicContext,
		})
		if perr != nil {
			// PlannerOutputInvalid: treat as an empty plan for this
			// iteration. It will surface as lack of progress rather than
			// a fatal error.
			plan = rcve.EnrichmentPlan{}
			return perr
		}
		plan = p
		return nil
	})

	execResult := executor.Run(ctx, plan, state.DynamicContext, state.Iteration, cfg.TokenBudget-state.TokensUsed)
	state.DynamicContext = execResult.DynamicContext
	state.TokensUsed += execResult.TokensConsumed
	state.ToolUsage = registry.Usage()

	if ctx.Err() != nil {
		return d.escalate(in, *state, rcve.StopDeadline), true
	}

	var result rcve.ValidationResult
	err := d.traceLLMCall(ctx, d.validatorLLM.Name(), d.validatorModel, func(ctx context.Context) error {
		r, verr := validateWithRetry(ctx, v, in.RawRequest, *state)
		result = r
		return verr
	})
	if err != nil {
		return d.escalate(in, *state, rcve.StopValidatorParseError), true
	}

	decision := router.Route(*state, result, cfg.MaxIterations)
	state.LastMissing = result.Missing
	state.LastConfidence = result.Confidence
	state.Category = result.Category
	state.Subcategories = result.Subcategories

	state.History = append(state.History, rcve.IterationRecord{
		Iteration:      state.Iteration,
		Plan:           plan,
		Actions:        execResult.Actions,
		TokensConsumed: execResult.TokensConsumed,
		MissingBefore:  missingBefore,
		MissingAfter:   result.Missing,
	})

	switch decision.Action {
	case router.ActionArchitect:
		return d.complete(in, *state), true
	case router.ActionEscalate:
		return d.escalate(in, *state, decision.StopReason), true
	}
	return nil, false
}

// traceLLMCall wraps fn in an LLM-request span when a Tracer is attached,
// recording an error on the span if fn returns one. With no Tracer it just
// calls fn directly.
func (d *Driver) traceLLMCall(ctx context.Context, providerName, model string, fn func(context.Context) error) error {
	if d.tracer == nil {
		return fn(ctx)
	}
	spanCtx, span := d.tracer.TraceLLMRequest(ctx, providerName, model)
	defer span.End()
	err := fn(spanCtx)
	if err != nil {
		d.tracer.RecordError(span, err)
	}
	return err
}

// validateWithRetry implements spec §7's ValidatorOutputInvalid policy:
// retry once with identical input, then surface the error so the caller
// escalates with stop_reason=validator_parse_error.
func validateWithRetry(ctx context.Context, v *validator.Validator, rawRequest string, state rcve.EnrichmentState) (rcve.ValidationResult, error) {
	in := validator.Input{
		RawRequest:     rawRequest,
		Iteration:      state.Iteration,
		DynamicContext: state.DynamicContext,
		LastMissing:    state.LastMissing,
	}
	result, err := v.Validate(ctx, in)
	if err == nil {
		return result, nil
	}
	return v.Validate(ctx, in)
}

func (d *Driver) complete(in rcve.RunInput, state rcve.EnrichmentState) rcve.CompletedOutcome {
	return rcve.CompletedOutcome{
		RequestID:       in.RequestID,
		Category:        state.Category,
		Subcategories:   state.Subcategories,
		EnrichedContext: rcve.RenderContext(state.DynamicContext),
		History:         state.History,
		TokensUsed:      state.TokensUsed,
		Iterations:      state.Iteration,
	}
}

func (d *Driver) escalate(in rcve.RunInput, state rcve.EnrichmentState, reason rcve.StopReason) rcve.EscalationOutcome {
	return rcve.EscalationOutcome{
		RequestID:        in.RequestID,
		Category:         state.Category,
		Subcategories:    state.Subcategories,
		StopReason:       reason,
		MissingQuestions: state.LastMissing,
		EnrichedContext:  rcve.RenderContext(state.DynamicContext),
		History:          state.History,
		TokensUsed:       state.TokensUsed,
		Iterations:       state.Iteration,
	}
}

func renderStaticSummary(in rcve.RunInput) string {
	summary := in.WebsiteContent
	for _, f := range in.FileSummaries {
		if f.Error != "" {
			continue
		}
		if summary != "" {
			summary += "\n"
		}
		summary += f.Filename + ": " + f.Text
	}
	return summary
}
