// Package llm provides chat-completion and embedding clients for the
// OpenAI-compatible and Anthropic provider APIs.
package llm

import (
	"context"
)

// LLMClient defines the interface for LLM operations consumed by the
// pipeline. Use this interface for dependency injection to enable mocking in
// tests.
type LLMClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// CreateEmbedding generates an embedding vector for the input text.
	// Vector length is provider-dependent (1536 and 768 observed).
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure implementations satisfy LLMClient at compile time.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
	_ LLMClient = (*MockLLMClient)(nil)
)
