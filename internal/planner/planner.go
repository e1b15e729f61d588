// Package planner implements the RCVE's Planner: an LLM-driven component
// that, given the current enrichment state, emits a structured plan naming
// which tools to call with which parameters. The Planner never executes a
// tool itself — it is advisory input to the Executor, which enforces every
// rule in this package's output post-hoc.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/rcve/internal/llm"
	"github.com/haasonsaas/rcve/pkg/rcve"
)

// planSchema is the JSON Schema every Planner response is validated
// against before its actions are trusted.
const planSchemaDoc = `{
  "type": "object",
  "required": ["actions"],
  "properties": {
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["tool", "question_answered", "params"],
        "properties": {
          "tool": {"type": "string"},
          "question_answered": {"type": "string"},
          "params": {"type": "object"},
          "rationale": {"type": "string"}
        }
      }
    },
    "est_total_tokens": {"type": "integer", "minimum": 0}
  }
}`

var planSchema = mustCompileSchema("enrichment_plan.json", planSchemaDoc)

func mustCompileSchema(name, doc string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		panic(fmt.Sprintf("planner: invalid embedded schema: %v", err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("planner: schema compile failed: %v", err))
	}
	return schema
}

// subjectivePhrases flags params that ask the client for subjective input
// the Planner must never schedule a tool call around (spec §4.2's third
// rule): those questions have to be returned to the user, not investigated.
var subjectivePhrases = []string{
	"target keyword", "preferred colour", "preferred color", "brand voice",
	"tone of voice", "favorite", "favourite",
}

// Planner produces an EnrichmentPlan from the current state via an LLM
// call, then does a light local sanity pass (schema validation, subjective-
// input screening) before handing the plan to the Executor. The Executor
// still re-applies budget/unknown-tool filtering independently — the
// Planner is never trusted on its own.
type Planner struct {
	provider llm.Provider
	model    string
}

// New constructs a Planner backed by provider.
func New(provider llm.Provider, model string) *Planner {
	return &Planner{provider: provider, model: model}
}

// ProviderName returns the name of the LLM provider backing this Planner,
// for callers that need to label a trace span or metric.
func (p *Planner) ProviderName() string { return p.provider.Name() }

// Model returns the model this Planner calls.
func (p *Planner) Model() string { return p.model }

// Input bundles everything spec §4.2 says the Planner receives.
type Input struct {
	RawRequest      string
	StaticSummary   string
	WebsiteURL      string
	LastMissing     rcve.MissingQuestions
	AvailableTools  []string
	DynamicContext  rcve.DynamicContext
}

// Plan calls the LLM and returns a validated EnrichmentPlan. A schema
// validation failure returns rcve.ErrPlannerOutputInvalid, which the caller
// must treat as an empty plan for the iteration (spec §7) rather than as a
// fatal error.
func (p *Planner) Plan(ctx context.Context, in Input) (rcve.EnrichmentPlan, error) {
	resp, err := p.provider.Complete(ctx, llm.Request{
		Model:     p.model,
		System:    systemPrompt,
		UserTurn:  renderPrompt(in),
		MaxTokens: 1024,
		Schema:    []byte(planSchemaDoc),
	})
	if err != nil {
		return rcve.EnrichmentPlan{}, fmt.Errorf("planner: completion failed: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(resp.JSON), &raw); err != nil {
		return rcve.EnrichmentPlan{}, rcve.ErrPlannerOutputInvalid
	}
	if err := planSchema.Validate(raw); err != nil {
		return rcve.EnrichmentPlan{}, rcve.ErrPlannerOutputInvalid
	}

	var decoded struct {
		Actions []struct {
			Tool             string         `json:"tool"`
			QuestionAnswered string         `json:"question_answered"`
			Params           map[string]any `json:"params"`
			Rationale        string         `json:"rationale"`
		} `json:"actions"`
		EstTotalTokens int `json:"est_total_tokens"`
	}
	if err := json.Unmarshal([]byte(resp.JSON), &decoded); err != nil {
		return rcve.EnrichmentPlan{}, rcve.ErrPlannerOutputInvalid
	}

	plan := rcve.EnrichmentPlan{EstTotalTokens: decoded.EstTotalTokens}
	for _, a := range decoded.Actions {
		if isSubjective(a.QuestionAnswered, a.Rationale) {
			continue
		}
		plan.Actions = append(plan.Actions, rcve.PlannedAction{
			Tool:             a.Tool,
			QuestionAnswered: a.QuestionAnswered,
			Params:           a.Params,
			Rationale:        a.Rationale,
		})
	}
	return plan, nil
}

func isSubjective(fields ...string) bool {
	joined := strings.ToLower(strings.Join(fields, " "))
	for _, phrase := range subjectivePhrases {
		if strings.Contains(joined, phrase) {
			return true
		}
	}
	return false
}

const systemPrompt = `You are the Planner stage of a context-gathering engine for website change requests.
Given the raw request, static context, and the questions still outstanding, emit a JSON plan of tool
calls that could answer those questions. Only name tools from the available-tools list. Never invent
parameters the missing questions didn't ask for. Never schedule a tool call for something only the
client can answer (target keywords, preferred colours, tone of voice, and the like) — return those to
the user instead by simply not scheduling an action for them.`

func renderPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Raw request: %s\n", in.RawRequest)
	if in.WebsiteURL != "" {
		fmt.Fprintf(&b, "Website: %s\n", in.WebsiteURL)
	}
	if in.StaticSummary != "" {
		fmt.Fprintf(&b, "Static context: %s\n", in.StaticSummary)
	}
	fmt.Fprintf(&b, "Outstanding questions: %s\n", strings.Join(in.LastMissing, "; "))
	fmt.Fprintf(&b, "Available tools (budget remaining): %s\n", strings.Join(in.AvailableTools, ", "))
	if len(in.DynamicContext) > 0 {
		b.WriteString("Already known (do not re-fetch these keys):\n")
		for k := range in.DynamicContext {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}
	return b.String()
}
