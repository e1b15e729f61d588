package planner

import (
	"context"
	"testing"

	"github.com/haasonsaas/rcve/internal/llm"
	"github.com/haasonsaas/rcve/pkg/rcve"
)

type scriptedProvider struct {
	json string
	err  error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if p.err != nil {
		return llm.Response{}, p.err
	}
	return llm.Response{JSON: p.json}, nil
}

func TestPlanDecodesActions(t *testing.T) {
	provider := &scriptedProvider{json: `{"actions":[
		{"tool":"fetch_page","question_answered":"what is the homepage title?","params":{"url":"https://example.com"},"rationale":"check current copy"}
	],"est_total_tokens":150}`}
	p := New(provider, "test-model")

	plan, err := p.Plan(context.Background(), Input{RawRequest: "Update the homepage title."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(plan.Actions))
	}
	if plan.Actions[0].Tool != "fetch_page" {
		t.Fatalf("unexpected tool: %s", plan.Actions[0].Tool)
	}
	if plan.EstTotalTokens != 150 {
		t.Fatalf("expected est_total_tokens preserved, got %d", plan.EstTotalTokens)
	}
}

func TestPlanDropsActionsTargetingSubjectiveInput(t *testing.T) {
	provider := &scriptedProvider{json: `{"actions":[
		{"tool":"web_search","question_answered":"what is your preferred colour scheme?","params":{"query":"brand colours"},"rationale":"asking for preferred colour"},
		{"tool":"fetch_page","question_answered":"what is the current homepage title?","params":{"url":"https://example.com"}}
	]}`}
	p := New(provider, "test-model")

	plan, err := p.Plan(context.Background(), Input{RawRequest: "Redesign the homepage."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Actions) != 1 {
		t.Fatalf("expected the subjective action to be dropped, got %d actions: %+v", len(plan.Actions), plan.Actions)
	}
	if plan.Actions[0].Tool != "fetch_page" {
		t.Fatalf("expected the surviving action to be fetch_page, got %s", plan.Actions[0].Tool)
	}
}

func TestPlanInvalidJSONReturnsPlannerOutputInvalid(t *testing.T) {
	provider := &scriptedProvider{json: `not json`}
	p := New(provider, "test-model")

	_, err := p.Plan(context.Background(), Input{RawRequest: "x"})
	if err != rcve.ErrPlannerOutputInvalid {
		t.Fatalf("expected ErrPlannerOutputInvalid, got %v", err)
	}
}

func TestPlanMissingRequiredFieldReturnsPlannerOutputInvalid(t *testing.T) {
	provider := &scriptedProvider{json: `{"actions":[{"tool":"fetch_page"}]}`}
	p := New(provider, "test-model")

	_, err := p.Plan(context.Background(), Input{RawRequest: "x"})
	if err != rcve.ErrPlannerOutputInvalid {
		t.Fatalf("expected ErrPlannerOutputInvalid for a missing required field, got %v", err)
	}
}

func TestPlanEmptyActionsIsValid(t *testing.T) {
	provider := &scriptedProvider{json: `{"actions":[]}`}
	p := New(provider, "test-model")

	plan, err := p.Plan(context.Background(), Input{RawRequest: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Actions) != 0 {
		t.Fatalf("expected no actions, got %d", len(plan.Actions))
	}
}
