package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// ProviderConfig selects and configures an LLM provider.
type ProviderConfig struct {
	Provider string // "openai", "ollama" (OpenAI-compatible), or "anthropic"

	// OpenAI-compatible settings (also used for the embedding companion of
	// the anthropic provider).
	Endpoint       string
	Model          string
	EmbeddingModel string
	APIKey         string

	// Anthropic settings.
	AnthropicAPIKey string
	AnthropicModel  string
}

// NewClientFromConfig builds the configured provider client. The anthropic
// provider gets an OpenAI-compatible embedding companion when an endpoint is
// configured, since Anthropic exposes no embedding API.
func NewClientFromConfig(cfg *ProviderConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case "openai", "ollama":
		return NewClient(&Config{
			Endpoint:       cfg.Endpoint,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			APIKey:         cfg.APIKey,
		}, logger)

	case "anthropic":
		var embedder LLMClient
		if cfg.Endpoint != "" {
			client, err := NewClient(&Config{
				Endpoint:       cfg.Endpoint,
				Model:          cfg.Model,
				EmbeddingModel: cfg.EmbeddingModel,
				APIKey:         cfg.APIKey,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("create embedding companion: %w", err)
			}
			embedder = client
		}
		return NewAnthropicClient(&AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
