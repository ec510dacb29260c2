package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"rag_chat/internal/builder"
	"rag_chat/internal/chunker"
	"rag_chat/internal/document"
	"rag_chat/internal/embedding"
)

// BuildReport итог сборки индекса
type BuildReport struct {
	Skipped   bool
	Documents int
	Entries   int
	Dimension int
	Took      time.Duration
}

// BuildIndex читает DATA_DIR, строит индекс и сохраняет его в INDEX_DIR вместе с manifest.json.
// Если ни файлы, ни настройки не менялись, сборка пропускается, пока не передан force.
func (a *App) BuildIndex(ctx context.Context, force bool) (BuildReport, error) {
	started := time.Now()

	docs, err := document.LoadDir(a.cfg.DataDir, a.logger)
	if err != nil {
		return BuildReport{}, err
	}

	absDataDir, err := filepath.Abs(a.cfg.DataDir)
	if err != nil {
		return BuildReport{}, fmt.Errorf("failed to get absolute data dir: %w", err)
	}

	current := &Manifest{
		Files:             filesOf(docs),
		DataPath:          absDataDir,
		Backend:           a.cfg.IndexBackend,
		ChunkSize:         a.cfg.ChunkSize,
		ChunkOverlap:      a.cfg.ChunkOverlap,
		EmbeddingProvider: a.cfg.Embedding.Provider,
		EmbeddingModel:    embedding.ModelName(a.embedder),
	}

	if !force {
		previous, err := LoadManifest(a.cfg.IndexDir)
		if err != nil {
			a.logger.Warn("manifest unreadable, rebuilding", zap.Error(err))
		}
		if previous != nil && a.indexExists() && current.SameInputs(previous) {
			a.logger.Info("✅ index is up to date, nothing to do",
				zap.Int("documents", len(docs)), zap.String("index_dir", a.cfg.IndexDir))
			return BuildReport{
				Skipped:   true,
				Documents: len(docs),
				Entries:   previous.Entries,
				Dimension: previous.Dimension,
				Took:      time.Since(started),
			}, nil
		}
	}

	newStore, err := a.storeFactory()
	if err != nil {
		return BuildReport{}, err
	}
	b, err := builder.New(a.embedder, newStore, builder.Config{
		Chunk:       chunker.Config{MaxChunkSize: a.cfg.ChunkSize, Overlap: a.cfg.ChunkOverlap},
		BatchSize:   a.cfg.EmbedBatchSize,
		Concurrency: a.cfg.EmbedConcurrency,
	}, a.logger)
	if err != nil {
		return BuildReport{}, err
	}

	if err := os.MkdirAll(a.cfg.IndexDir, 0o755); err != nil {
		return BuildReport{}, fmt.Errorf("failed to create index directory: %w", err)
	}

	store, err := b.BuildAndPersist(ctx, docs, a.cfg.IndexDir)
	if err != nil {
		return BuildReport{}, err
	}

	current.Entries = store.Len()
	current.Dimension = store.Dimension()
	current.BuiltAt = time.Now().UTC()
	if err := current.Save(a.cfg.IndexDir); err != nil {
		return BuildReport{}, fmt.Errorf("failed to save manifest: %w", err)
	}

	return BuildReport{
		Documents: len(docs),
		Entries:   store.Len(),
		Dimension: store.Dimension(),
		Took:      time.Since(started),
	}, nil
}
