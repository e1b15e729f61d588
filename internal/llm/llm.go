// Package llm defines the provider-agnostic interface the Planner and
// Validator use to get a single structured JSON completion out of an LLM,
// and the Anthropic/OpenAI adapters implementing it. This is a narrower
// cousin of the streaming chat-agent LLMProvider this engine's ancestor
// exposes: the Planner and Validator never stream — they need exactly one
// JSON object, validated against a schema, per call.
package llm

import "context"

// Request is a single structured-completion request: a system prompt, one
// user turn carrying the task-specific payload, and a JSON Schema the
// response must satisfy.
type Request struct {
	Model     string
	System    string
	UserTurn  string
	MaxTokens int
	Schema    []byte // JSON Schema, validated against the response before it's trusted
}

// Response is the raw JSON text returned by the model, plus token usage for
// the engine's token-budget accounting.
type Response struct {
	JSON         string
	InputTokens  int
	OutputTokens int
}

// Provider is implemented by each LLM backend. Complete is not a streaming
// call: it blocks until the model's full response is available or ctx is
// cancelled.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
