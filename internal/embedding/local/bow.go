// Package local офлайн-эмбеддер "мешок слов": без сети, детерминированный.
package local

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// DefaultDimension размер хешированного пространства
const DefaultDimension = 512

var tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// Embedder считает частоты токенов.
// С фиксированным словарём каждая координата соответствует слову словаря,
// без словаря токены раскладываются по корзинам хеша.
type Embedder struct {
	vocabulary map[string]int
	dimension  int
}

// NewVocabulary эмбеддер с явным словарём
func NewVocabulary(words []string) *Embedder {
	vocab := make(map[string]int, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if _, ok := vocab[w]; !ok {
			vocab[w] = len(vocab)
		}
	}
	return &Embedder{vocabulary: vocab, dimension: len(vocab)}
}

// NewHashed эмбеддер с хешированием токенов в dim корзин
func NewHashed(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dimension: dim}
}

func (e *Embedder) Model() string {
	if e.vocabulary != nil {
		return "local-vocabulary"
	}
	return "local-hashed"
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)
	for _, tok := range Tokenize(text) {
		if e.vocabulary != nil {
			if idx, ok := e.vocabulary[tok]; ok {
				v[idx]++
			}
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[int(h.Sum32()%uint32(e.dimension))]++
	}
	return v
}

// Tokenize разбивает текст на токены в нижнем регистре
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}
