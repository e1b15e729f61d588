package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/rcve/internal/retry"
)

// AnthropicProvider implements Provider against Anthropic's Claude API, for
// use as the Planner/Validator's structured-output backend.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	retryConfig  retry.Config
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// NewAnthropicProvider constructs an AnthropicProvider. If DefaultModel is
// empty, "claude-sonnet-4-20250514" is used.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retryCfg.InitialDelay = cfg.RetryDelay
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		defaultModel: model,
		retryConfig:  retryCfg,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete sends req as a single-turn message and asks the model to return
// only JSON matching req.Schema, described in the system prompt (Anthropic
// has no native response_format constraint, so the contract is carried in
// the prompt and enforced by the caller's schema validation).
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	system := req.System
	if len(req.Schema) > 0 {
		system += "\n\nRespond with a single JSON object only, matching this schema:\n" + string(req.Schema)
	}

	var out Response
	result := retry.Do(ctx, p.retryConfig, func() error {
		message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(maxTokens),
			System:    []anthropic.TextBlockParam{{Text: system}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserTurn)),
			},
		})
		if err != nil {
			return err
		}

		var text string
		for _, block := range message.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}

		out = Response{
			JSON:         text,
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		}
		return nil
	})

	if result.Err != nil {
		return Response{}, fmt.Errorf("anthropic completion failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return out, nil
}
