// Package router implements the RCVE's Router: a pure function deciding,
// from the current EnrichmentState and the latest Validator output,
// whether a request is done, must escalate, or needs another enrichment
// pass. It holds no state and calls nothing — every input it needs is
// passed in.
package router

import (
	"strings"
	"unicode"

	"github.com/haasonsaas/rcve/pkg/rcve"
)

// Decision is the Router's verdict for the iteration just completed.
type Decision struct {
	Action     Action
	StopReason rcve.StopReason
}

// Action is the closed set of next steps the Loop Driver can take.
type Action string

const (
	ActionArchitect Action = "architect"
	ActionEscalate  Action = "escalate"
	ActionEnrich    Action = "enrich"
)

// Route applies the fixed priority order from the design (complete,
// unclear-at-iteration-zero, max-iterations, token-limit, no-progress,
// otherwise enrich). Exactly one branch fires.
func Route(state rcve.EnrichmentState, result rcve.ValidationResult, maxIterations int) Decision {
	if result.Complete {
		return Decision{Action: ActionArchitect, StopReason: rcve.StopComplete}
	}
	if state.Iteration == 0 && result.Category == rcve.CategoryUnclear {
		return Decision{Action: ActionEscalate, StopReason: rcve.StopUnclear}
	}
	if state.Iteration >= maxIterations {
		return Decision{Action: ActionEscalate, StopReason: rcve.StopMaxIterations}
	}
	if state.TokensUsed >= state.TokenBudget {
		return Decision{Action: ActionEscalate, StopReason: rcve.StopTokenLimit}
	}
	// A no_progress verdict needs one full prior enrichment round to compare
	// against, so it never fires coming out of iteration 1 — that round's
	// "before" snapshot is only the iteration-0 baseline, not yet the
	// product of a completed Planner/Executor/Validator cycle.
	if state.Iteration >= 2 && NoProgress(state.LastMissing, result.Missing) {
		return Decision{Action: ActionEscalate, StopReason: rcve.StopNoProgress}
	}
	return Decision{Action: ActionEnrich}
}

// NoProgress reports whether the normalized set of missing questions is
// unchanged between two iterations. Normalization is lower-case, trimmed,
// punctuation-stripped text equality — a conservative floor, since the
// Validator may paraphrase a question in a way this text comparison still
// treats as a distinct (and therefore "resolved") question. That false
// positive is accepted rather than attempting semantic matching.
func NoProgress(before, after rcve.MissingQuestions) bool {
	return normalizeSet(before).equal(normalizeSet(after))
}

type questionSet map[string]struct{}

func normalizeSet(qs rcve.MissingQuestions) questionSet {
	set := make(questionSet, len(qs))
	for _, q := range qs {
		set[normalize(q)] = struct{}{}
	}
	return set
}

func normalize(q string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(strings.ToLower(q)) {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (s questionSet) equal(other questionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for q := range s {
		if _, ok := other[q]; !ok {
			return false
		}
	}
	return true
}
