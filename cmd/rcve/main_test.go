package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/rcve/pkg/rcve"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestReadRunInputFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "request.json")
	in := rcve.RunInput{RequestID: "r1", ClientID: "example.com", RawRequest: "fix the contact form"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := readRunInput(path)
	if err != nil {
		t.Fatalf("readRunInput() error = %v", err)
	}
	if got.RequestID != "r1" || got.ClientID != "example.com" {
		t.Errorf("readRunInput() = %+v, want RequestID=r1 ClientID=example.com", got)
	}
}

func TestReadRunInputRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "request.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := readRunInput(path); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestAnswerRateOfUsesIterationZeroMissingAsTheDenominator(t *testing.T) {
	o := rcve.EscalationOutcome{
		MissingQuestions: rcve.MissingQuestions{"c"},
		History: []rcve.IterationRecord{
			{Iteration: 1, MissingBefore: rcve.MissingQuestions{"a", "b", "c"}},
			{Iteration: 2, MissingBefore: rcve.MissingQuestions{"b", "c"}},
		},
	}
	if got, want := answerRateOf(o), 2.0/3.0; got != want {
		t.Errorf("answerRateOf() = %v, want %v", got, want)
	}
}

func TestAnswerRateOfFallsBackToMissingQuestionsWithoutHistory(t *testing.T) {
	o := rcve.EscalationOutcome{MissingQuestions: rcve.MissingQuestions{"a", "b"}}
	if got, want := answerRateOf(o), 0.0; got != want {
		t.Errorf("answerRateOf() = %v, want %v", got, want)
	}
}

func TestAnswerRateOfZeroQuestionsIsZero(t *testing.T) {
	if got := answerRateOf(rcve.EscalationOutcome{}); got != 0 {
		t.Errorf("answerRateOf() = %v, want 0", got)
	}
}
