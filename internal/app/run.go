package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"rag_chat/internal/composer"
	"rag_chat/internal/embedding"
	"rag_chat/internal/retriever"
	"rag_chat/internal/session"
	"rag_chat/internal/shared"
	"rag_chat/internal/tui"
)

// NewSession открывает сохранённый индекс и собирает сессию чата
func (a *App) NewSession(ctx context.Context) (*session.Session, *Manifest, error) {
	if !a.indexExists() {
		return nil, nil, shared.Errorf(shared.KindIndexNotFound,
			"no index in %s, run rag_index first", a.cfg.IndexDir)
	}

	manifest, err := LoadManifest(a.cfg.IndexDir)
	if err != nil {
		a.logger.Warn("manifest unreadable", zap.Error(err))
	}
	if manifest != nil {
		if model := embedding.ModelName(a.embedder); manifest.EmbeddingModel != model {
			a.logger.Warn("⚠️ index was built with a different embedding model",
				zap.String("index_model", manifest.EmbeddingModel),
				zap.String("current_model", model))
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	if a.generator == nil {
		gen, err := NewGenerator(a.cfg)
		if err != nil {
			return nil, nil, err
		}
		a.generator = gen
	}

	r := retriever.New(a.embedder, store, retriever.Config{
		TopK:          a.cfg.TopK,
		MinSimilarity: a.cfg.MinSimilarity,
	}, a.logger)
	c := composer.New(a.generator, composer.Config{
		HistoryTurns:     a.cfg.HistoryTurns,
		MaxContextChars:  a.cfg.MaxContextChars,
		DedupOverlapping: a.cfg.DedupOverlapping,
	}, a.logger)

	s := session.New(r, c, a.logger)
	a.logger.Info("💬 chat session started",
		zap.String("session_id", s.ID),
		zap.Int("entries", store.Len()),
		zap.String("backend", a.cfg.IndexBackend))
	return s, manifest, nil
}

// Chat запускает построчный диалог на in/out или, при useTUI, терминальный интерфейс
func (a *App) Chat(ctx context.Context, in io.Reader, out io.Writer, useTUI bool) error {
	s, manifest, err := a.NewSession(ctx)
	if err != nil {
		return err
	}

	if useTUI {
		return tui.Run(ctx, s, summary(manifest))
	}
	return s.Run(ctx, in, out)
}

func summary(m *Manifest) string {
	if m == nil {
		return "Index loaded"
	}
	return fmt.Sprintf("%d documents, %d chunks, model %s", len(m.Files), m.Entries, m.EmbeddingModel)
}
