package runtime

import (
	"fmt"

	"github.com/felixgeelhaar/ace/internal/config"
	"github.com/felixgeelhaar/ace/internal/provider"
	"github.com/felixgeelhaar/ace/internal/store"
)

// BuildProvider constructs the configured backend. When config and
// environment leave the API key empty, the encrypted store entry
// "<backend>.api_key" is the fallback.
func BuildProvider(cfg config.ProviderConfig, st store.Storage) (provider.Provider, error) {
	opts := provider.Options{
		Model:         cfg.Model,
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		ContextWindow: cfg.ContextWindow,
	}
	if opts.APIKey == "" && st != nil {
		key, err := st.GetSecret(cfg.Backend + ".api_key")
		if err != nil {
			return nil, fmt.Errorf("failed to read stored api key: %w", err)
		}
		opts.APIKey = key
	}

	switch cfg.Backend {
	case "ollama":
		return provider.NewOllamaProvider(opts), nil
	case "openai":
		return provider.NewOpenAIProvider(opts)
	case "anthropic":
		return provider.NewAnthropicProvider(opts)
	case "gemini":
		return provider.NewGeminiProvider(opts)
	case "stub":
		return provider.NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Backend)
	}
}
