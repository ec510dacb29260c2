package app

import (
	"rag_chat/internal/config"
	"rag_chat/internal/embedding"
	"rag_chat/internal/embedding/local"
	"rag_chat/internal/embedding/ollama"
	embopenai "rag_chat/internal/embedding/openai"
	"rag_chat/internal/generation"
	genopenai "rag_chat/internal/generation/openai"
	"rag_chat/internal/generation/responses"
	"rag_chat/internal/shared"
)

// NewEmbedder создаёт провайдер эмбеддингов по конфигурации
func NewEmbedder(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		if err := requireOpenAIKey(cfg); err != nil {
			return nil, err
		}
		c, err := embopenai.New(embopenai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.Embedding.Model,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderMaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		c, err := ollama.New(cfg.OllamaURL, cfg.Embedding.Model, cfg.ProviderMaxRetries)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "local":
		return local.NewHashed(local.DefaultDimension), nil
	default:
		return nil, shared.Errorf(shared.KindConfiguration, "unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// NewGenerator создаёт генеративную модель по конфигурации
func NewGenerator(cfg *config.Config) (generation.Provider, error) {
	if err := requireOpenAIKey(cfg); err != nil {
		return nil, err
	}

	opts := generation.Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		MaxRetries:  cfg.ProviderMaxRetries,
	}

	switch cfg.Generation.Provider {
	case "openai":
		c, err := genopenai.New(opts, cfg.ProviderTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "responses":
		c, err := responses.New(opts, cfg.ProviderTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, shared.Errorf(shared.KindConfiguration, "unknown generation provider %q", cfg.Generation.Provider)
	}
}

// Без ключа можно работать только с совместимым сервером по OPENAI_BASE_URL
func requireOpenAIKey(cfg *config.Config) error {
	if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		return shared.Errorf(shared.KindConfiguration, "OPENAI_API_KEY is required for the %s/%s providers",
			cfg.Embedding.Provider, cfg.Generation.Provider)
	}
	return nil
}
