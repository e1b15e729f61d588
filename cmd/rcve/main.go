// Package main provides the CLI entry point for the recursive
// context-gathering validation engine.
//
// # Basic Usage
//
// Run a single enrichment request read from a JSON file:
//
//	rcve run --config rcve.yaml --input request.json
//
// Or pipe the request on stdin:
//
//	cat request.json | rcve run --config rcve.yaml
//
// # Environment Variables
//
//   - RCVE_CONFIG: path to the configuration file (default: rcve.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/rcve/internal/config"
	"github.com/haasonsaas/rcve/internal/engine"
	"github.com/haasonsaas/rcve/internal/llm"
	"github.com/haasonsaas/rcve/internal/observability"
	"github.com/haasonsaas/rcve/internal/planner"
	"github.com/haasonsaas/rcve/internal/tools"
	"github.com/haasonsaas/rcve/pkg/rcve"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rcve",
		Short: "Recursive context-gathering validation engine",
		Long: `rcve drives a change request through iterative Planner/Executor/Validator
passes until the Validator judges the gathered context complete or a hard
limit forces escalation to a human.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildRunCmd())

	return rootCmd
}

// buildRunCmd creates the "run" command that executes a single request to
// completion or escalation.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		inputPath  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one enrichment request to a terminal outcome",
		Long: `Run reads a single RunInput as JSON (from --input or stdin), drives it
through the engine, and writes the terminal CompletedOutcome or
EscalationOutcome as JSON to stdout.`,
		Example: `  # Run from a file
  rcve run --config rcve.yaml --input request.json

  # Run from stdin
  cat request.json | rcve run --config rcve.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.Context(), configPath, inputPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "rcve.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to a RunInput JSON file (defaults to stdin)")

	return cmd
}

func runRequest(ctx context.Context, configPath, inputPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: cfg.Observability.ServiceName,
		Endpoint:    cfg.Observability.OTLPEndpoint,
	})
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn(ctx, "tracer shutdown failed", "error", err)
		}
	}()

	metrics := observability.NewMetrics()

	in, err := readRunInput(inputPath)
	if err != nil {
		return fmt.Errorf("read run input: %w", err)
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}

	ctx = observability.AddRequestID(ctx, in.RequestID)
	ctx, span := tracer.Start(ctx, "run_request")
	defer span.End()

	d, err := buildDriver(cfg, tracer, metrics)
	if err != nil {
		return fmt.Errorf("build driver: %w", err)
	}

	logger.Info(ctx, "starting enrichment run", "client_id", in.ClientID)

	outcome, err := d.Run(ctx, in)
	if err != nil {
		tracer.RecordError(span, err)
		logger.Error(ctx, "enrichment run failed", "error", err)
		return err
	}

	recordOutcomeMetrics(metrics, outcome)

	return json.NewEncoder(os.Stdout).Encode(outcome)
}

func buildDriver(cfg *config.Config, tracer *observability.Tracer, metrics *observability.Metrics) (*engine.Driver, error) {
	anthropicCfg := cfg.LLM.Providers["anthropic"]
	anthropicProvider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{
		APIKey:       anthropicCfg.APIKey,
		DefaultModel: anthropicCfg.DefaultModel,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic provider: %w", err)
	}

	plannerLLM, validatorLLM, model := resolveProviders(cfg, anthropicProvider)

	catalog := tools.DefaultCatalog(tools.CatalogDeps{
		HTTPClient:        tools.NewHTTPClient(time.Duration(cfg.Tools.HTTPTimeoutSeconds) * time.Second),
		WebSearchEndpoint: cfg.Tools.WebSearch.Endpoint,
		WebSearchAPIKey:   cfg.Tools.WebSearch.APIKey,
		MapsEndpoint:      cfg.Tools.Maps.Endpoint,
		MapsAPIKey:        cfg.Tools.Maps.APIKey,
		ReviewsEndpoint:   cfg.Tools.Reviews.Endpoint,
		ReviewsAPIKey:     cfg.Tools.Reviews.APIKey,
	})

	engineCfg := engine.Config{
		MaxIterations:        cfg.Engine.MaxIterations,
		TokenBudget:          cfg.Engine.TokenBudget,
		ToolTimeout:          cfg.Engine.ToolTimeout(),
		ToolBudgets:          cfg.Engine.ToolBudgets,
		ConfidenceThresholds: cfg.Engine.ConfidenceThresholds,
	}

	return engine.New(catalog, planner.New(plannerLLM, model), validatorLLM, model, engineCfg, engine.WithObservability(tracer, metrics)), nil
}

// resolveProviders picks the Planner/Validator LLM provider and model,
// falling back to the OpenAI adapter when llm.default_provider selects it.
func resolveProviders(cfg *config.Config, anthropicProvider llm.Provider) (plannerLLM, validatorLLM llm.Provider, model string) {
	if cfg.LLM.DefaultProvider == "openai" {
		openaiCfg := cfg.LLM.Providers["openai"]
		if openaiProvider, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       openaiCfg.APIKey,
			DefaultModel: openaiCfg.DefaultModel,
		}); err == nil {
			return openaiProvider, openaiProvider, openaiCfg.DefaultModel
		}
	}
	return anthropicProvider, anthropicProvider, cfg.LLM.Providers["anthropic"].DefaultModel
}

func readRunInput(path string) (rcve.RunInput, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return rcve.RunInput{}, err
		}
		defer f.Close()
		r = f
	}

	var in rcve.RunInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return rcve.RunInput{}, fmt.Errorf("decode RunInput: %w", err)
	}
	return in, nil
}

func recordOutcomeMetrics(metrics *observability.Metrics, outcome rcve.Outcome) {
	switch o := outcome.(type) {
	case rcve.CompletedOutcome:
		metrics.RecordRunOutcome(string(o.Category), "", o.Iterations, o.TokensUsed, 1.0, meanConfidence(o.EnrichedContext))
	case rcve.EscalationOutcome:
		answerRate := answerRateOf(o)
		metrics.RecordRunOutcome(string(o.Category), string(o.StopReason), o.Iterations, o.TokensUsed, answerRate, meanConfidence(o.EnrichedContext))
	}
}

// meanConfidence is the mean of dynamic_context[*].confidence at the
// iteration a run stopped on.
func meanConfidence(entries []rcve.EnrichedContextEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entries {
		sum += e.Confidence
	}
	return sum / float64(len(entries))
}

// answerRateOf computes the fraction of iteration-0 missing questions
// resolved by the time the run stopped: (missing at iteration 0 - missing
// at the final iteration) / missing at iteration 0.
func answerRateOf(o rcve.EscalationOutcome) float64 {
	initialMissing := len(o.MissingQuestions)
	if len(o.History) > 0 {
		initialMissing = len(o.History[0].MissingBefore)
	}
	if initialMissing == 0 {
		return 0
	}
	return float64(initialMissing-len(o.MissingQuestions)) / float64(initialMissing)
}
