// Package app связывает конфигурацию, провайдеры и индекс в два сценария:
// сборку индекса и интерактивный чат.
package app

import (
	"go.uber.org/zap"

	"rag_chat/internal/config"
	"rag_chat/internal/embedding"
	"rag_chat/internal/generation"
)

type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	embedder  embedding.Provider
	generator generation.Provider
}

// Option переопределяет провайдеры, созданные по конфигурации
type Option func(*App)

// WithEmbedder подставляет готовый провайдер эмбеддингов
func WithEmbedder(p embedding.Provider) Option {
	return func(a *App) { a.embedder = p }
}

// WithGenerator подставляет готовую генеративную модель
func WithGenerator(p generation.Provider) Option {
	return func(a *App) { a.generator = p }
}

// New создаёт приложение. Провайдер эмбеддингов нужен всегда,
// генеративная модель создаётся лениво при первом запуске чата.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.embedder == nil {
		emb, err := NewEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		a.embedder = emb
	}

	logger.Debug("app initialized",
		zap.String("data_dir", cfg.DataDir),
		zap.String("index_dir", cfg.IndexDir),
		zap.String("backend", cfg.IndexBackend),
		zap.String("embedding_model", embedding.ModelName(a.embedder)),
	)
	return a, nil
}

func (a *App) Config() *config.Config {
	return a.cfg
}
