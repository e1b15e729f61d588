package engine

import (
	"time"

	"github.com/haasonsaas/rcve/pkg/rcve"
)

// Config holds the Loop Driver's hard limits (spec §4.6), configurable per
// the overrides table in spec §6.
type Config struct {
	MaxIterations        int
	TokenBudget           int
	ToolTimeout           time.Duration
	ToolBudgets           map[string]int
	ConfidenceThresholds  [4]float64
}

// DefaultConfig returns the spec's default limits.
func DefaultConfig() Config {
	return Config{
		MaxIterations:        3,
		TokenBudget:          500_000,
		ToolTimeout:          rcve.ToolInvocationTimeout,
		ConfidenceThresholds: [4]float64{0.85, 0.75, 0.65, 0.60},
	}
}

// WithOverride applies a per-request RunConfigOverride (spec §6) on top of
// the base Config, returning a new Config.
func (c Config) WithOverride(override *rcve.RunConfigOverride) Config {
	if override == nil {
		return c
	}
	out := c
	if override.MaxIterations != nil {
		out.MaxIterations = *override.MaxIterations
	}
	if override.TokenBudget != nil {
		out.TokenBudget = *override.TokenBudget
	}
	if override.ToolTimeoutSeconds != nil {
		out.ToolTimeout = time.Duration(*override.ToolTimeoutSeconds) * time.Second
	}
	if override.ConfidenceThresholds != nil {
		out.ConfidenceThresholds = *override.ConfidenceThresholds
	}
	if override.ToolBudgets != nil {
		out.ToolBudgets = override.ToolBudgets
	}
	return out
}
