package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rcve.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_iterations: 3
  extra: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidatesMaxIterations(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_iterations: 0
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "max_iterations") {
		t.Fatalf("expected max_iterations error, got %v", err)
	}
}

func TestLoadValidatesConfidenceThresholds(t *testing.T) {
	path := writeConfig(t, `
engine:
  confidence_thresholds: [0.85, 0.75, 0.65, 1.5]
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "confidence_thresholds") {
		t.Fatalf("expected confidence_thresholds error, got %v", err)
	}
}

func TestLoadValidConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: test-key
      default_model: claude-sonnet-4-5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.MaxIterations != 3 {
		t.Errorf("expected default max_iterations 3, got %d", cfg.Engine.MaxIterations)
	}
	if cfg.Engine.TokenBudget != 500_000 {
		t.Errorf("expected default token_budget 500000, got %d", cfg.Engine.TokenBudget)
	}
	if got := cfg.Engine.ConfidenceThresholds; got != [4]float64{0.85, 0.75, 0.65, 0.60} {
		t.Errorf("expected default confidence thresholds, got %v", got)
	}
	if len(cfg.Engine.ToolBudgets) != 9 {
		t.Errorf("expected 9 default tool budgets, got %d", len(cfg.Engine.ToolBudgets))
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("expected default logging level/format, got %+v", cfg.Logging)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("RCVE_TEST_API_KEY", "sk-from-env")
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: ${RCVE_TEST_API_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Providers["anthropic"].APIKey != "sk-from-env" {
		t.Errorf("expected expanded env var, got %q", cfg.LLM.Providers["anthropic"].APIKey)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(basePath, []byte(`
engine:
  max_iterations: 4
`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	mainPath := filepath.Join(dir, "rcve.yaml")
	if err := os.WriteFile(mainPath, []byte(`
$include: base.yaml
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.MaxIterations != 4 {
		t.Errorf("expected included max_iterations 4, got %d", cfg.Engine.MaxIterations)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.yaml")
	bPath := filepath.Join(dir, "b.yaml")
	if err := os.WriteFile(aPath, []byte(`$include: b.yaml`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(bPath, []byte(`$include: a.yaml`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(aPath); err == nil {
		t.Fatalf("expected include cycle error")
	}
}
