package app

import (
	"context"

	"rag_chat/internal/builder"
	"rag_chat/internal/index"
	"rag_chat/internal/index/chromemstore"
	"rag_chat/internal/shared"
)

// storeFactory пустое хранилище выбранного бэкенда
func (a *App) storeFactory() (builder.StoreFactory, error) {
	switch a.cfg.IndexBackend {
	case "memory":
		return builder.MemoryStore, nil
	case "chromem":
		return func() (index.Store, error) {
			s, err := chromemstore.New()
			if err != nil {
				return nil, err
			}
			return s, nil
		}, nil
	default:
		return nil, shared.Errorf(shared.KindConfiguration, "unknown index backend %q", a.cfg.IndexBackend)
	}
}

// indexExists проверяет файл индекса выбранного бэкенда
func (a *App) indexExists() bool {
	if a.cfg.IndexBackend == "chromem" {
		return chromemstore.Exists(a.cfg.IndexDir)
	}
	return index.Exists(a.cfg.IndexDir)
}

// openStore загружает сохранённый индекс
func (a *App) openStore(ctx context.Context) (index.Store, error) {
	switch a.cfg.IndexBackend {
	case "memory":
		ix, err := index.Load(a.cfg.IndexDir)
		if err != nil {
			return nil, err
		}
		return ix, nil
	case "chromem":
		s, err := chromemstore.Load(ctx, a.cfg.IndexDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, shared.Errorf(shared.KindConfiguration, "unknown index backend %q", a.cfg.IndexBackend)
	}
}
