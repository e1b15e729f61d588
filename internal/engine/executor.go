// Package engine implements the RCVE's Loop Driver and Executor: the
// orchestration that threads an EnrichmentState through repeated
// Planner -> Executor -> Validator -> Router passes until a terminal
// decision is reached.
package engine

import (
	"context"

	"github.com/haasonsaas/rcve/internal/tools"
	"github.com/haasonsaas/rcve/pkg/rcve"
)

// Executor dispatches a Planner's proposed actions through the Registry,
// enforcing every rule the Planner is not trusted to have honored itself:
// unknown tools are dropped, exhausted budgets are dropped, and the
// request's token budget is re-checked after every action so a plan can
// never run past it by more than the one action in flight. Actions never
// retry within an iteration — a failed attempt is recorded and left alone.
type Executor struct {
	registry *tools.Registry
}

// NewExecutor builds an Executor over registry.
func NewExecutor(registry *tools.Registry) *Executor {
	return &Executor{registry: registry}
}

// Result is one iteration's execution outcome: the action records in
// Planner-issued order, the dynamic context with this iteration's
// observations merged in, and the tokens actually consumed.
type Result struct {
	Actions        []rcve.ActionRecord
	DynamicContext rcve.DynamicContext
	TokensConsumed int
}

// Run executes plan's actions in order against dc (the context snapshot
// entering this iteration), stopping early if the running token total
// would meet or exceed budgetRemaining or if ctx is cancelled.
func (e *Executor) Run(ctx context.Context, plan rcve.EnrichmentPlan, dc rcve.DynamicContext, iteration int, budgetRemaining int) Result {
	out := Result{DynamicContext: dc.Clone()}

	for _, action := range plan.Actions {
		if ctx.Err() != nil {
			break
		}
		if budgetRemaining <= 0 || out.TokensConsumed >= budgetRemaining {
			break
		}

		record := rcve.ActionRecord{
			Tool:             action.Tool,
			QuestionAnswered: action.QuestionAnswered,
			Params:           action.Params,
			Rationale:        action.Rationale,
		}

		if !e.registry.Has(action.Tool) {
			record.OK = false
			record.ErrorKind = string(rcve.ToolErrorInvalidInput)
			record.ErrorMessage = "tool not registered: " + action.Tool
			out.Actions = append(out.Actions, record)
			continue
		}

		result, err := e.registry.Invoke(ctx, action.Tool, action.Params)
		if err != nil {
			record.OK = false
			switch {
			case rcve.IsBudgetExhausted(err):
				record.ErrorKind = string(rcve.ToolErrorBudget)
			case rcve.IsToolTimeout(err):
				record.ErrorKind = string(rcve.ToolErrorTimeout)
			case rcve.IsToolExecutionError(err):
				record.ErrorKind = string(result.ErrorKind)
			default:
				record.ErrorKind = string(rcve.ToolErrorInvalidInput)
			}
			record.ErrorMessage = err.Error()
			out.Actions = append(out.Actions, record)
			continue
		}

		record.OK = result.OK
		record.Observations = result.Observations
		record.EstTokens = result.EstTokens
		if !result.OK {
			record.ErrorKind = string(result.ErrorKind)
			record.ErrorMessage = result.ErrorMessage
			out.Actions = append(out.Actions, record)
			continue
		}

		out.TokensConsumed += result.EstTokens
		for key, value := range result.Observations {
			confidence := defaultConfidence
			if result.ConfidenceByKey != nil {
				if c, ok := result.ConfidenceByKey[key]; ok {
					confidence = c
				}
			}
			out.DynamicContext = out.DynamicContext.Merge(key, rcve.Observation{
				Value:      value,
				SourceTool: action.Tool,
				Confidence: confidence,
				Iteration:  iteration,
			})
		}
		out.Actions = append(out.Actions, record)
	}

	return out
}

// defaultConfidence applies when a tool reports an observation without a
// per-key confidence override.
const defaultConfidence = 0.7
