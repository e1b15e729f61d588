package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the enrichment engine.
type Config struct {
	Engine        EngineConfig        `yaml:"engine"`
	LLM           LLMConfig           `yaml:"llm"`
	Tools         ToolsConfig         `yaml:"tools"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// EngineConfig holds the Loop Driver's default hard limits, overridable
// per-request via RunInput.Config.
type EngineConfig struct {
	MaxIterations        int            `yaml:"max_iterations"`
	TokenBudget          int            `yaml:"token_budget"`
	ToolTimeoutSeconds   int            `yaml:"tool_timeout_seconds"`
	ToolBudgets          map[string]int `yaml:"tool_budgets"`
	ConfidenceThresholds [4]float64     `yaml:"confidence_thresholds"`
}

// LLMConfig selects and configures the LLM providers the Planner and
// Validator call into.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig configures a single LLM provider.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// ToolsConfig configures the tool registry's shared collaborators.
type ToolsConfig struct {
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`

	WebSearch ToolServiceConfig `yaml:"web_search"`
	Maps      ToolServiceConfig `yaml:"maps"`
	Reviews   ToolServiceConfig `yaml:"reviews"`
}

// ToolServiceConfig configures an externally-backed tool (web_search,
// maps_lookup, reviews_lookup) that has no dedicated SDK in this corpus.
type ToolServiceConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Load reads path, resolving $include directives and expanding environment
// variables, then decodes into a Config with defaults applied and the
// result validated.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(payload)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	applyEngineDefaults(&cfg.Engine)
	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	applyLoggingDefaults(&cfg.Logging)
	applyObservabilityDefaults(&cfg.Observability)
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 3
	}
	if cfg.TokenBudget == 0 {
		cfg.TokenBudget = 500_000
	}
	if cfg.ToolTimeoutSeconds == 0 {
		cfg.ToolTimeoutSeconds = 30
	}
	if cfg.ConfidenceThresholds == ([4]float64{}) {
		cfg.ConfidenceThresholds = [4]float64{0.85, 0.75, 0.65, 0.60}
	}
	if len(cfg.ToolBudgets) == 0 {
		cfg.ToolBudgets = map[string]int{
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
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg.HTTPTimeoutSeconds == 0 {
		cfg.HTTPTimeoutSeconds = 20
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyObservabilityDefaults(cfg *ObservabilityConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "rcve"
	}
}

// ConfigValidationError aggregates every validation failure in a config so
// an operator sees them all at once instead of one-at-a-time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Engine.MaxIterations < 1 {
		issues = append(issues, "engine.max_iterations must be >= 1")
	}
	if cfg.Engine.TokenBudget < 1 {
		issues = append(issues, "engine.token_budget must be >= 1")
	}
	if cfg.Engine.ToolTimeoutSeconds < 1 {
		issues = append(issues, "engine.tool_timeout_seconds must be >= 1")
	}
	for _, t := range cfg.Engine.ConfidenceThresholds {
		if t < 0 || t > 1 {
			issues = append(issues, "engine.confidence_thresholds entries must be between 0 and 1")
			break
		}
	}
	for tool, budget := range cfg.Engine.ToolBudgets {
		if budget < 0 {
			issues = append(issues, fmt.Sprintf("engine.tool_budgets[%s] must be >= 0", tool))
		}
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if cfg.Tools.HTTPTimeoutSeconds < 1 {
		issues = append(issues, "tools.http_timeout_seconds must be >= 1")
	}

	if level := strings.ToLower(strings.TrimSpace(cfg.Logging.Level)); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			issues = append(issues, "logging.level must be \"debug\", \"info\", \"warn\", or \"error\"")
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}

// ToolTimeout returns the engine's tool timeout as a time.Duration.
func (c EngineConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}
