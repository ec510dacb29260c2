// Package config собирает конфигурацию один раз при старте процесса.
// Приоритет: значения по умолчанию < YAML файл < переменные окружения.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"rag_chat/internal/shared"
)

// EnvConfigPath переменная с путём к YAML файлу, если не задан флаг -config
const EnvConfigPath = "RAG_CONFIG"

type EmbeddingConfig struct {
	Provider string `env:"EMBEDDING_PROVIDER" yaml:"provider" validate:"oneof=openai ollama local"`
	Model    string `env:"EMBEDDING_MODEL" yaml:"model" validate:"required"`
}

type GenerationConfig struct {
	Provider    string  `env:"GENERATION_PROVIDER" yaml:"provider" validate:"oneof=openai responses"`
	Model       string  `env:"GENERATION_MODEL" yaml:"model" validate:"required"`
	Temperature float64 `env:"TEMPERATURE" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `env:"MAX_TOKENS" yaml:"max_tokens" validate:"gte=0"`
}

type Config struct {
	DataDir      string `env:"DATA_DIR" yaml:"data_dir" validate:"required"`
	IndexDir     string `env:"INDEX_DIR" yaml:"index_dir" validate:"required"`
	IndexBackend string `env:"INDEX_BACKEND" yaml:"index_backend" validate:"oneof=memory chromem"`

	ChunkSize        int `env:"CHUNK_SIZE" yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     int `env:"CHUNK_OVERLAP" yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	EmbedBatchSize   int `env:"EMBED_BATCH_SIZE" yaml:"embed_batch_size" validate:"gt=0"`
	EmbedConcurrency int `env:"EMBED_CONCURRENCY" yaml:"embed_concurrency" validate:"gte=1"`

	TopK             int     `env:"TOP_K" yaml:"top_k" validate:"gt=0"`
	MinSimilarity    float64 `env:"MIN_SIMILARITY" yaml:"min_similarity" validate:"gte=-1,lte=1"`
	HistoryTurns     int     `env:"HISTORY_TURNS" yaml:"history_turns" validate:"gte=0"`
	MaxContextChars  int     `env:"MAX_CONTEXT_CHARS" yaml:"max_context_chars" validate:"gte=0"`
	DedupOverlapping bool    `env:"DEDUP_OVERLAPPING" yaml:"dedup_overlapping"`

	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`

	OpenAIAPIKey       string        `env:"OPENAI_API_KEY" yaml:"openai_api_key"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL" yaml:"openai_base_url" validate:"omitempty,url"`
	OllamaURL          string        `env:"OLLAMA_URL" yaml:"ollama_url" validate:"omitempty,url"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" yaml:"provider_timeout" validate:"gt=0"`
	ProviderMaxRetries int           `env:"PROVIDER_MAX_RETRIES" yaml:"provider_max_retries" validate:"gte=0"`

	LogLevel  string `env:"LOG_LEVEL" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" yaml:"log_format" validate:"oneof=json console"`
}

// Default значения по умолчанию
func Default() Config {
	return Config{
		DataDir:          "./data",
		IndexDir:         "./vectordb",
		IndexBackend:     "memory",
		ChunkSize:        1000,
		ChunkOverlap:     200,
		EmbedBatchSize:   32,
		EmbedConcurrency: 1,
		TopK:             4,
		MinSimilarity:    -1,
		HistoryTurns:     3,
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		OllamaURL:          "http://localhost:11434",
		ProviderTimeout:    60 * time.Second,
		ProviderMaxRetries: 3,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// Load строит конфигурацию. path пустой: берётся RAG_CONFIG, если задан
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, shared.NewError(shared.KindConfiguration, "read config file", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, shared.NewError(shared.KindConfiguration, "parse config file "+path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, shared.NewError(shared.KindConfiguration, "parse environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate проверяет значения и возвращает ошибку категории configuration
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.NewError(shared.KindConfiguration, "validate config", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	sort.Strings(msgs)
	return shared.Errorf(shared.KindConfiguration, "%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed on '%s'", field, fe.Tag())
	}
}
