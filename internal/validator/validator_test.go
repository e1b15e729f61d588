package validator

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

func TestValidateRecomputesCompleteAgainstThreshold(t *testing.T) {
	provider := &scriptedProvider{json: `{"complete":true,"missing":[],"confidence":0.7,"category":"bug_fix"}`}
	v := New(provider, "test-model")

	result, err := v.Validate(context.Background(), Input{RawRequest: "x", Iteration: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Complete {
		t.Fatalf("confidence 0.7 must not clear iteration 0's 0.85 bar even though the model said complete")
	}
}

func TestValidateIterationAwareThresholdRelaxesOverIterations(t *testing.T) {
	provider := &scriptedProvider{json: `{"complete":true,"missing":[],"confidence":0.62,"category":"bug_fix"}`}
	v := New(provider, "test-model")

	result, err := v.Validate(context.Background(), Input{RawRequest: "x", Iteration: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Complete {
		t.Fatalf("confidence 0.62 should clear iteration 3's 0.60 bar")
	}
}

func TestValidateNeverCompleteWithOutstandingMissing(t *testing.T) {
	provider := &scriptedProvider{json: `{"complete":true,"missing":["what is the target page?"],"confidence":0.95,"category":"bug_fix"}`}
	v := New(provider, "test-model")

	result, err := v.Validate(context.Background(), Input{RawRequest: "x", Iteration: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Complete {
		t.Fatalf("a nonempty missing list must never be reported complete regardless of model confidence")
	}
}

func TestValidateInvalidJSONReturnsValidatorOutputInvalid(t *testing.T) {
	provider := &scriptedProvider{json: `not json`}
	v := New(provider, "test-model")

	_, err := v.Validate(context.Background(), Input{RawRequest: "x"})
	if err != rcve.ErrValidatorOutputInvalid {
		t.Fatalf("expected ErrValidatorOutputInvalid, got %v", err)
	}
}

func TestValidateRejectsUnknownCategory(t *testing.T) {
	provider := &scriptedProvider{json: `{"complete":false,"missing":[],"confidence":0.5,"category":"not_a_real_category"}`}
	v := New(provider, "test-model")

	_, err := v.Validate(context.Background(), Input{RawRequest: "x"})
	if err != rcve.ErrValidatorOutputInvalid {
		t.Fatalf("expected ErrValidatorOutputInvalid for an out-of-enum category, got %v", err)
	}
}

func TestThresholdClampsOutOfRangeIterations(t *testing.T) {
	v := New(&scriptedProvider{}, "test-model")
	if v.Threshold(-1) != v.Threshold(0) {
		t.Fatalf("negative iterations should clamp to the iteration-0 threshold")
	}
	if v.Threshold(99) != v.Threshold(3) {
		t.Fatalf("iterations beyond the table should clamp to its last entry")
	}
}

func TestWithThresholdsOverridesDefaultTable(t *testing.T) {
	provider := &scriptedProvider{json: `{"complete":true,"missing":[],"confidence":0.5,"category":"bug_fix"}`}
	v := New(provider, "test-model", WithThresholds([4]float64{0.4, 0.4, 0.4, 0.4}))

	result, err := v.Validate(context.Background(), Input{RawRequest: "x", Iteration: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Complete {
		t.Fatalf("expected the overridden 0.4 threshold to be used, confidence 0.5 should clear it")
	}
}
