// Package provider defines the Completer interface consumed by C5 (router)
// and C6 (model manager): a single shape every completion backend
// (anthropic, openai, bedrock) implements, so neither component imports a
// provider SDK directly.
package provider

import "context"

// Message is one turn in a completion request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// Response is a provider-agnostic completion result.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// Completer sends a completion request to one LLM backend.
type Completer interface {
	// Name returns the provider identifier ("anthropic", "openai", "bedrock").
	Name() string

	// Models returns the model IDs this provider instance can serve.
	Models() []string

	// Complete sends req and blocks for the full response (no streaming;
	// C6 records token usage and latency only after the call returns).
	Complete(ctx context.Context, req Request) (Response, error)
}
