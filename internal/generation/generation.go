// Package generation описывает генеративную модель и её адаптеры.
package generation

import (
	"context"
	"strings"
)

// Prompt системные инструкции и пользовательская часть запроса
type Prompt struct {
	System string
	User   string
}

// String промпт одним текстом, для моделей без отдельной системной роли
func (p Prompt) String() string {
	if p.System == "" {
		return p.User
	}
	var b strings.Builder
	b.WriteString(p.System)
	b.WriteString("\n\n")
	b.WriteString(p.User)
	return b.String()
}

// Provider генерирует ответ по промпту
type Provider interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// ProviderFunc позволяет использовать функцию как Provider
type ProviderFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f ProviderFunc) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Options общие параметры генерации
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}
