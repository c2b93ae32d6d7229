// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"iter"
)

// LLMService streams completions from a language model.
//
// Implementations include:
//   - Ollama (local models)
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
type LLMService interface {
	// Stream sends the prompt and yields text pieces as the model produces them.
	// A non-nil error ends the sequence. Cancelling ctx aborts the request.
	Stream(ctx context.Context, prompt string, opts GenerateOptions) iter.Seq2[string, error]

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// NumCtx is the context window requested from providers that accept one.
	NumCtx int

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
