package index

import (
	"context"
	"math"

	"rag_chat/internal/chunker"
)

// Entry чанк вместе с его эмбеддингом
type Entry struct {
	Chunk     chunker.Chunk
	Embedding []float32
	Metadata  map[string]string
}

// Result результат поиска
type Result struct {
	Chunk chunker.Chunk
	Score float64
}

// Store общий контракт векторного индекса.
// После построения индекс только читается, Search безопасен для конкурентного вызова.
type Store interface {
	Add(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Len() int
	Dimension() int
	Persist(location string) error
}

// CosineSimilarity dot(a,b) / (|a|*|b|), 0 для нулевого вектора
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return cosine(dot, normA, normB)
}

func cosine(dot, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	s := dot / math.Sqrt(normA*normB)
	// Погрешность float может вывести за [-1, 1]
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

func squaredNorm(v []float32) float64 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	return n
}
