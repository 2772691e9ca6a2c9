// Package llm provides text generation for the research agents.
//
// The package defines a provider abstraction over chat-style LLM APIs
// (OpenAI Chat Completions, Anthropic Messages) plus a Client wrapper that
// adds request smoothing and schema-validated structured generation.
//
// Example usage:
//
//	provider, err := llm.NewProvider(cfg)
//	client := llm.NewClient(provider, llm.ClientConfig{RateLimitRPS: 2})
//	var gaps []domain.ResearchGap
//	err = client.GenerateStructured(ctx, llm.Request{Prompt: prompt}, &gaps)
package llm

import (
	"context"
)

// Request contains a single generation request.
type Request struct {
	// System is the system-level instruction (optional).
	System string

	// Prompt is the user-level prompt text.
	Prompt string

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// MaxTokens overrides the provider default when positive.
	MaxTokens int
}

// Response contains the generated text and usage metadata.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that produced the response.
	Model string

	// InputTokens is the number of prompt tokens consumed.
	InputTokens int

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int
}

// TotalTokens returns the combined prompt and completion token count.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider defines the interface for a chat-style LLM backend.
//
// Implementations handle provider-specific API calls, transient-error
// retries, and error parsing while conforming to this unified interface.
type Provider interface {
	// Complete sends one generation request.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Retry transient errors (429, 5xx, network) with backoff
	//   - Return wrapped errors with provider context, never echoing API keys
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
