// Package builder строит векторный индекс из документов.
package builder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rag_chat/internal/chunker"
	"rag_chat/internal/document"
	"rag_chat/internal/embedding"
	"rag_chat/internal/index"
	"rag_chat/internal/shared"
)

const DefaultBatchSize = 32

// StoreFactory создаёт пустое хранилище для новой сборки
type StoreFactory func() (index.Store, error)

// MemoryStore фабрика in-memory индекса
func MemoryStore() (index.Store, error) {
	return index.New(), nil
}

// Config параметры сборки
type Config struct {
	Chunk       chunker.Config
	BatchSize   int // чанков в одном запросе к провайдеру
	Concurrency int // параллельных запросов, 1 = последовательно
}

// Builder чанкует документы, считает эмбеддинги батчами и наполняет индекс
type Builder struct {
	embedder embedding.Provider
	newStore StoreFactory
	chunker  chunker.Chunker
	cfg      Config
	logger   *zap.Logger
}

// New проверяет параметры и создаёт Builder
func New(embedder embedding.Provider, newStore StoreFactory, cfg Config, logger *zap.Logger) (*Builder, error) {
	tc, err := chunker.NewTextChunker(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize < 0 || cfg.Concurrency < 0 {
		return nil, shared.Errorf(shared.KindConfiguration, "batch size and concurrency must not be negative")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if newStore == nil {
		newStore = MemoryStore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{embedder: embedder, newStore: newStore, chunker: tc, cfg: cfg, logger: logger}, nil
}

type batch struct {
	num    int
	chunks []chunker.Chunk
}

// Build строит индекс целиком или возвращает ошибку; частичного результата не бывает
func (b *Builder) Build(ctx context.Context, docs []document.Document) (index.Store, error) {
	if len(docs) == 0 {
		return nil, shared.ErrNoDocuments
	}

	started := time.Now()
	var chunks []chunker.Chunk
	for _, doc := range docs {
		cs, err := b.chunker.Chunk(doc.Content, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", doc.ID, err)
		}
		b.logger.Debug("document chunked", zap.String("document", doc.ID), zap.Int("chunks", len(cs)))
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return nil, shared.NewError(shared.KindNoDocuments, "documents contain no text", nil)
	}

	batches := splitBatches(chunks, b.cfg.BatchSize)
	b.logger.Info("📦 embedding chunks",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("batches", len(batches)),
		zap.Int("concurrency", b.cfg.Concurrency),
		zap.String("chunker", b.chunker.Name()),
	)

	vectors, err := b.embedBatches(ctx, batches)
	if err != nil {
		return nil, err
	}

	entries := make([]index.Entry, 0, len(chunks))
	for i, bt := range batches {
		for j, ch := range bt.chunks {
			entries = append(entries, index.Entry{
				Chunk:     ch,
				Embedding: vectors[i][j],
				Metadata:  map[string]string{"document": ch.Source},
			})
		}
	}

	store, err := b.newStore()
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := store.Add(ctx, entries); err != nil {
		return nil, err
	}

	b.logger.Info("✅ index built",
		zap.Int("entries", store.Len()),
		zap.Int("dimension", store.Dimension()),
		zap.Duration("took", time.Since(started)),
	)
	return store, nil
}

// BuildAndPersist сохраняет индекс только если сборка прошла полностью
func (b *Builder) BuildAndPersist(ctx context.Context, docs []document.Document, location string) (index.Store, error) {
	store, err := b.Build(ctx, docs)
	if err != nil {
		return nil, err
	}
	if err := store.Persist(location); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	b.logger.Info("💾 index saved", zap.String("location", location))
	return store, nil
}

// embedBatches отправляет батчи с ограничением параллелизма.
// Каждая горутина пишет только в свой слот, поэтому порядок сохраняется.
func (b *Builder) embedBatches(ctx context.Context, batches []batch) ([][][]float32, error) {
	results := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)

	for i := range batches {
		bt := batches[i]
		g.Go(func() error {
			vecs, err := b.embedBatch(gctx, bt)
			if err != nil {
				return err
			}
			results[bt.num] = vecs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Builder) embedBatch(ctx context.Context, bt batch) ([][]float32, error) {
	texts := make([]string, len(bt.chunks))
	ids := make([]string, len(bt.chunks))
	for i, ch := range bt.chunks {
		texts[i] = ch.Text
		ids[i] = ch.ID
	}

	vecs, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		b.logger.Error("embedding batch failed", zap.Int("batch", bt.num), zap.Error(err))
		return nil, &shared.Error{
			Kind:     shared.KindEmbedding,
			Message:  fmt.Sprintf("batch %d failed", bt.num),
			Err:      err,
			ChunkIDs: ids,
		}
	}
	if len(vecs) != len(texts) {
		return nil, &shared.Error{
			Kind:     shared.KindEmbedding,
			Message:  fmt.Sprintf("batch %d: provider returned %d vectors for %d chunks", bt.num, len(vecs), len(texts)),
			ChunkIDs: ids,
		}
	}

	b.logger.Debug("batch embedded", zap.Int("batch", bt.num), zap.Int("chunks", len(texts)))
	return vecs, nil
}

func splitBatches(chunks []chunker.Chunk, size int) []batch {
	var out []batch
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		out = append(out, batch{num: len(out), chunks: chunks[start:end]})
	}
	return out
}
