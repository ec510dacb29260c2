// Package embedding описывает провайдер эмбеддингов и его адаптеры.
package embedding

import (
	"context"
	"fmt"
)

// Provider превращает тексты в векторы.
// Результат содержит ровно один вектор на каждый входной текст в том же порядке.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Named провайдер, который умеет назвать свою модель (для manifest)
type Named interface {
	Model() string
}

// ProviderFunc позволяет использовать функцию как Provider
type ProviderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f ProviderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// ModelName имя модели провайдера или "unknown"
func ModelName(p Provider) string {
	if n, ok := p.(Named); ok {
		return n.Model()
	}
	return "unknown"
}

// EmbedOne эмбеддинг одного текста
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("provider returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}
