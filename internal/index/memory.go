package index

import (
	"context"
	"sort"
	"sync"

	"rag_chat/internal/shared"
)

// Index in-memory индекс с полным перебором по косинусной близости
type Index struct {
	mu        sync.RWMutex
	entries   []Entry
	norms     []float64
	dimension int
}

// New создаёт пустой индекс; размерность фиксируется первым Add
func New() *Index {
	return &Index{}
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dimension
}

// Entries копия записей в порядке добавления
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Add добавляет записи. Если хоть одна не совпадает по размерности, батч отклоняется целиком.
func (ix *Index) Add(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.dimension
	if dim == 0 {
		dim = len(entries[0].Embedding)
	}
	if dim == 0 {
		return shared.Errorf(shared.KindDimensionMismatch, "entry %s has empty embedding", entries[0].Chunk.ID)
	}
	for _, e := range entries {
		if len(e.Embedding) != dim {
			return shared.Errorf(shared.KindDimensionMismatch,
				"entry %s has dimension %d, index expects %d", e.Chunk.ID, len(e.Embedding), dim)
		}
	}

	ix.dimension = dim
	for _, e := range entries {
		ix.entries = append(ix.entries, e)
		ix.norms = append(ix.norms, squaredNorm(e.Embedding))
	}
	return nil
}

// Search возвращает до k ближайших записей по убыванию score.
// При равенстве score раньше идёт запись, добавленная раньше.
func (ix *Index) Search(_ context.Context, query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, shared.Errorf(shared.KindConfiguration, "k must be positive, got %d", k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, shared.ErrEmptyIndex
	}
	if len(query) != ix.dimension {
		return nil, shared.Errorf(shared.KindDimensionMismatch,
			"query has dimension %d, index expects %d", len(query), ix.dimension)
	}

	qNorm := squaredNorm(query)
	results := make([]Result, len(ix.entries))
	for i, e := range ix.entries {
		var dot float64
		for j, x := range e.Embedding {
			dot += float64(x) * float64(query[j])
		}
		results[i] = Result{Chunk: e.Chunk, Score: cosine(dot, ix.norms[i], qNorm)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}
