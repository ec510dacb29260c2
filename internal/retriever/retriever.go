// Package retriever ищет чанки, релевантные вопросу.
package retriever

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"rag_chat/internal/embedding"
	"rag_chat/internal/index"
	"rag_chat/internal/shared"
)

const DefaultTopK = 4

// Config параметры поиска
type Config struct {
	TopK int
	// MinSimilarity отсекает результаты ниже порога; значение <= -1 отключает фильтр
	MinSimilarity float64
}

// Retriever эмбеддит запрос и ищет ближайшие чанки в индексе
type Retriever struct {
	embedder embedding.Provider
	store    index.Store
	cfg      Config
	logger   *zap.Logger
}

// New создаёт Retriever; TopK <= 0 заменяется на DefaultTopK
func New(embedder embedding.Provider, store index.Store, cfg Config, logger *zap.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// TopK k по умолчанию
func (r *Retriever) TopK() int {
	return r.cfg.TopK
}

// Retrieve поиск с k по умолчанию
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]index.Result, error) {
	return r.RetrieveTopK(ctx, query, r.cfg.TopK)
}

// RetrieveTopK поиск с явным k
func (r *Retriever) RetrieveTopK(ctx context.Context, query string, k int) ([]index.Result, error) {
	if k <= 0 {
		return nil, shared.Errorf(shared.KindConfiguration, "k must be positive, got %d", k)
	}

	vec, err := embedding.EmbedOne(ctx, r.embedder, query)
	if err != nil {
		return nil, &shared.Error{Kind: shared.KindEmbedding, Message: "embed query", Err: err, Query: query}
	}

	results, err := r.store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	if r.cfg.MinSimilarity > -1 {
		filtered := results[:0]
		for _, res := range results {
			if res.Score >= r.cfg.MinSimilarity {
				filtered = append(filtered, res)
			}
		}
		if dropped := len(results) - len(filtered); dropped > 0 {
			r.logger.Debug("results below similarity threshold dropped",
				zap.Int("dropped", dropped), zap.Float64("min_similarity", r.cfg.MinSimilarity))
		}
		results = filtered
	}

	r.logger.Debug("🔍 retrieved", zap.Int("k", k), zap.Int("results", len(results)))
	return results, nil
}

// IsEmptyIndex удобная проверка для вызывающего кода
func IsEmptyIndex(err error) bool {
	return errors.Is(err, shared.ErrEmptyIndex)
}
