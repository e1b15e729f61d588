package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/rcve/internal/retry"
)

// OpenAIProvider implements Provider against the OpenAI Chat Completions
// API, used as the swappable secondary backend for the Planner/Validator.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	retryConfig  retry.Config
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// NewOpenAIProvider constructs an OpenAIProvider. If DefaultModel is empty,
// "gpt-4o" is used.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retryCfg.InitialDelay = cfg.RetryDelay
	}

	return &OpenAIProvider{
		client:       openai.NewClient(cfg.APIKey),
		defaultModel: model,
		retryConfig:  retryCfg,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Complete uses the Chat Completions JSON-object response format so the
// model is constrained to return a parseable JSON document directly,
// rather than relying on prompt discipline alone as the Anthropic adapter
// must.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
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
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     model,
			MaxTokens: maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: req.UserTurn},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai: empty choices in response")
		}

		out = Response{
			JSON:         resp.Choices[0].Message.Content,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		return nil
	})

	if result.Err != nil {
		return Response{}, fmt.Errorf("openai completion failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return out, nil
}
