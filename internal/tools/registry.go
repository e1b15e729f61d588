package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/rcve/internal/observability"
	"github.com/haasonsaas/rcve/pkg/rcve"
)

// MaxToolNameLength and MaxToolParamsSize guard against resource exhaustion
// from a malformed or adversarial Planner output, mirroring the same guard
// the agent runtime this engine is descended from applies to its own tool
// dispatch.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 256
)

// ParamValidator is an optional interface a Tool can implement to reject
// params before Invoke ever runs. A validation failure is NOT a ToolError:
// its budget slot is restored, per spec (the call never really happened).
type ParamValidator interface {
	ValidateParams(params map[string]any) error
}

// Registry is the per-request Tool Registry: it owns the budget counters
// for one EnrichmentState and is never shared across requests (spec §5 —
// "owned by the request's EnrichmentState, not a process-global
// singleton"). The catalog of Tool implementations backing it, however, may
// be shared and reused to build many per-request Registries.
type Registry struct {
	mu      sync.Mutex
	tools   map[string]Tool
	usage   map[string]rcve.ToolUsage
	timeout time.Duration
	tracer  *observability.Tracer
	metrics *observability.Metrics
}

// RegistryOption configures optional Registry behavior.
type RegistryOption func(*Registry)

// WithObservability attaches a Tracer and Metrics to the Registry so every
// Invoke call opens a tool-execution span and increments that tool's call
// counter. Either argument may be nil.
func WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) RegistryOption {
	return func(r *Registry) {
		r.tracer = tracer
		r.metrics = metrics
	}
}

// NewRegistry builds a per-request Registry from a shared tool catalog and
// per-request budget overrides (spec §6's tool_budgets configuration key).
// Tools absent from budgets fall back to their own DefaultBudget().
func NewRegistry(catalog map[string]Tool, budgets map[string]int, timeout time.Duration, opts ...RegistryOption) *Registry {
	usage := make(map[string]rcve.ToolUsage, len(catalog))
	for name, t := range catalog {
		max := t.DefaultBudget()
		if override, ok := budgets[name]; ok {
			max = override
		}
		usage[name] = rcve.ToolUsage{MaxCalls: max}
	}
	if timeout <= 0 {
		timeout = rcve.ToolInvocationTimeout
	}
	r := &Registry{tools: catalog, usage: usage, timeout: timeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AvailableTools returns the names of tools whose budget is not exhausted.
func (r *Registry) AvailableTools() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		if !r.usage[name].Exhausted() {
			out = append(out, name)
		}
	}
	return out
}

// Usage returns a snapshot of current per-tool call counts, safe to embed
// in an EnrichmentState.
func (r *Registry) Usage() map[string]rcve.ToolUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]rcve.ToolUsage, len(r.usage))
	for k, v := range r.usage {
		out[k] = v
	}
	return out
}

// Has reports whether name is a registered tool, regardless of budget.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tools[name]
	return ok
}

// Invoke runs tool name with params, enforcing budget and timeout exactly
// as spec §4.1 describes: the budget is decremented before the call, the
// decrement is reverted if the call is rejected pre-execution or times out,
// and left in place if the tool body itself reports failure.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) (rcve.ToolResult, error) {
	if len(name) > MaxToolNameLength {
		return rcve.ToolResult{}, fmt.Errorf("tool name exceeds maximum length of %d", MaxToolNameLength)
	}
	if len(params) > MaxToolParamsSize {
		return rcve.ToolResult{}, fmt.Errorf("tool params exceed maximum field count of %d", MaxToolParamsSize)
	}

	r.mu.Lock()
	tool, ok := r.tools[name]
	if !ok {
		r.mu.Unlock()
		return rcve.ToolResult{}, rcve.ErrToolNotRegistered
	}
	usage := r.usage[name]
	if usage.Exhausted() {
		r.mu.Unlock()
		return rcve.ToolResult{}, &rcve.BudgetExhaustedError{Tool: name}
	}
	usage.CallsMade++
	r.usage[name] = usage
	r.mu.Unlock()

	restore := func() {
		r.mu.Lock()
		u := r.usage[name]
		if u.CallsMade > 0 {
			u.CallsMade--
		}
		r.usage[name] = u
		r.mu.Unlock()
	}

	if validator, ok := tool.(ParamValidator); ok {
		if err := validator.ValidateParams(params); err != nil {
			restore()
			return rcve.ToolResult{OK: false, ErrorKind: rcve.ToolErrorInvalidInput, ErrorMessage: err.Error()}, nil
		}
	}

	if r.metrics != nil {
		r.metrics.RecordToolCall(name)
	}
	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.TraceToolExecution(ctx, name)
		defer span.End()
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct{ res Result }
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- outcome{res: ErrResult("execution", fmt.Sprintf("tool panic: %v", rec))}
			}
		}()
		ch <- outcome{res: tool.Invoke(execCtx, params)}
	}()

	select {
	case o := <-ch:
		if !o.res.OK {
			kind := rcve.ToolErrorKind(o.res.ErrorKind)
			err := &rcve.ToolExecutionError{Tool: name, Kind: kind, Message: o.res.ErrorMessage}
			if r.tracer != nil {
				r.tracer.RecordError(trace.SpanFromContext(ctx), err)
			}
			return rcve.ToolResult{OK: false, ErrorKind: kind, ErrorMessage: o.res.ErrorMessage}, err
		}
		return rcve.ToolResult{
			OK:              true,
			Observations:    o.res.Observations,
			ConfidenceByKey: o.res.ConfidenceByKey,
			EstTokens:       o.res.EstTokens,
		}, nil
	case <-execCtx.Done():
		restore()
		err := &rcve.ToolTimeoutError{Tool: name, Timeout: r.timeout.String()}
		if r.tracer != nil {
			r.tracer.RecordError(trace.SpanFromContext(ctx), err)
		}
		return rcve.ToolResult{}, err
	}
}

// DefaultCatalog returns the standard nine-tool catalog with their default
// implementations, keyed by tool name.
func DefaultCatalog(deps CatalogDeps) map[string]Tool {
	list := []Tool{
		NewFetchPage(deps.HTTPClient),
		NewWebSearch(deps.HTTPClient, deps.WebSearchEndpoint, deps.WebSearchAPIKey),
		NewImageProbe(),
		NewPDFExtract(),
		NewFormDetect(deps.HTTPClient),
		NewSocialFind(deps.HTTPClient),
		NewSEOAudit(deps.HTTPClient),
		NewMapsLookup(deps.HTTPClient, deps.MapsEndpoint, deps.MapsAPIKey),
		NewReviewsLookup(deps.HTTPClient, deps.ReviewsEndpoint, deps.ReviewsAPIKey),
	}
	catalog := make(map[string]Tool, len(list))
	for _, t := range list {
		catalog[t.Name()] = t
	}
	return catalog
}

// DefaultBudgets returns the default per-request call caps from spec §4.1.
func DefaultBudgets() map[string]int {
	return map[string]int{
		"fetch_page":     5,
		"web_search":     3,
		"image_probe":    3,
		"pdf_extract":    2,
		"form_detect":    3,
		"social_find":    2,
		"seo_audit":      1,
		"maps_lookup":    1,
		"reviews_lookup": 1,
	}
}
