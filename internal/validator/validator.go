// Package validator implements the RCVE's Validator: an LLM-driven
// classifier that, after each iteration's tool calls are merged into the
// dynamic context, decides whether the request is ready for the architect,
// what questions remain, and which of the ten fixed categories it belongs
// to. The Validator never calls tools — it only reads state.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/rcve/internal/llm"
	"github.com/haasonsaas/rcve/pkg/rcve"
)

const resultSchemaDoc = `{
  "type": "object",
  "required": ["complete", "missing", "confidence", "category"],
  "properties": {
    "complete": {"type": "boolean"},
    "missing": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "category": {
      "type": "string",
      "enum": ["blog_post", "seo_optimization", "bug_fix", "content_update",
               "business_info_update", "new_page", "form_changes",
               "design_changes", "feature_request", "unclear"]
    },
    "subcategories": {"type": "array", "items": {"type": "string"}}
  }
}`

var resultSchema = mustCompileSchema("validation_result.json", resultSchemaDoc)

func mustCompileSchema(name, doc string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		panic(fmt.Sprintf("validator: invalid embedded schema: %v", err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("validator: schema compile failed: %v", err))
	}
	return schema
}

// thresholdsByIteration is the default iteration-aware confidence table
// (spec §4.3): the bar for "complete" drops as iterations accumulate,
// since a request that has survived several enrichment passes without new
// information is more likely genuinely ambiguous than under-investigated.
var thresholdsByIteration = [4]float64{0.85, 0.75, 0.65, 0.60}

// Validator classifies an iteration's outcome via an LLM call.
type Validator struct {
	provider   llm.Provider
	model      string
	thresholds [4]float64
}

// Option configures a Validator.
type Option func(*Validator)

// WithThresholds overrides the default per-iteration confidence table.
func WithThresholds(t [4]float64) Option {
	return func(v *Validator) { v.thresholds = t }
}

// New constructs a Validator backed by provider.
func New(provider llm.Provider, model string, opts ...Option) *Validator {
	v := &Validator{provider: provider, model: model, thresholds: thresholdsByIteration}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Input bundles what the Validator reads to classify an iteration.
type Input struct {
	RawRequest     string
	Iteration      int
	DynamicContext rcve.DynamicContext
	LastMissing    rcve.MissingQuestions
}

// Threshold returns the confidence bar in effect for the given iteration,
// clamped to the table's last entry beyond MaxIterations.
func (v *Validator) Threshold(iteration int) float64 {
	if iteration < 0 {
		iteration = 0
	}
	if iteration >= len(v.thresholds) {
		iteration = len(v.thresholds) - 1
	}
	return v.thresholds[iteration]
}

// Validate calls the LLM once and returns a ValidationResult with
// Complete recomputed against this iteration's threshold (the model is
// asked for a raw confidence; the pass/fail decision is ours, not the
// model's, so the threshold table stays enforceable and testable without
// depending on prompt compliance).
//
// A malformed response returns rcve.ErrValidatorOutputInvalid. The caller
// is responsible for the spec's retry-once-then-escalate policy.
func (v *Validator) Validate(ctx context.Context, in Input) (rcve.ValidationResult, error) {
	resp, err := v.provider.Complete(ctx, llm.Request{
		Model:     v.model,
		System:    systemPrompt,
		UserTurn:  renderPrompt(in),
		MaxTokens: 768,
		Schema:    []byte(resultSchemaDoc),
	})
	if err != nil {
		return rcve.ValidationResult{}, fmt.Errorf("validator: completion failed: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(resp.JSON), &raw); err != nil {
		return rcve.ValidationResult{}, rcve.ErrValidatorOutputInvalid
	}
	if err := resultSchema.Validate(raw); err != nil {
		return rcve.ValidationResult{}, rcve.ErrValidatorOutputInvalid
	}

	var decoded struct {
		Complete      bool     `json:"complete"`
		Missing       []string `json:"missing"`
		Confidence    float64  `json:"confidence"`
		Category      string   `json:"category"`
		Subcategories []string `json:"subcategories"`
	}
	if err := json.Unmarshal([]byte(resp.JSON), &decoded); err != nil {
		return rcve.ValidationResult{}, rcve.ErrValidatorOutputInvalid
	}

	result := rcve.ValidationResult{
		Missing:       rcve.MissingQuestions(decoded.Missing),
		Confidence:    decoded.Confidence,
		Category:      rcve.Category(decoded.Category),
		Subcategories: decoded.Subcategories,
	}
	result.Complete = decoded.Complete && len(result.Missing) == 0 && result.Confidence >= v.Threshold(in.Iteration)
	return result, nil
}

const systemPrompt = `You are the Validator stage of a context-gathering engine for website change requests.
Given the raw request and everything discovered so far, decide: is there enough information to hand
this off for implementation? List any questions that remain unanswered, a confidence score in [0,1]
for your completeness judgment, and classify the request into exactly one of the ten fixed categories.
If the request itself is too vague to classify even with more investigation, use category "unclear".`

func renderPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Raw request: %s\n", in.RawRequest)
	fmt.Fprintf(&b, "Iteration: %d\n", in.Iteration)
	if len(in.LastMissing) > 0 {
		fmt.Fprintf(&b, "Previously missing: %s\n", strings.Join(in.LastMissing, "; "))
	}
	if len(in.DynamicContext) > 0 {
		b.WriteString("Known so far:\n")
		for k, obs := range in.DynamicContext {
			fmt.Fprintf(&b, "- %s = %v (source: %s, confidence %.2f)\n", k, obs.Value, obs.SourceTool, obs.Confidence)
		}
	} else {
		b.WriteString("Nothing discovered yet.\n")
	}
	return b.String()
}
