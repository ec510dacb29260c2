// Package ollama эмбеддинги через локальный Ollama
package ollama

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"rag_chat/internal/shared"
)

// Client оборачивает chromem.EmbeddingFunc для Ollama в embedding.Provider
type Client struct {
	embed      chromem.EmbeddingFunc
	model      string
	maxRetries int
}

// New создаёт клиент. baseURL без суффикса /api, например http://localhost:11434
func New(baseURL, model string, maxRetries int) (*Client, error) {
	if model == "" {
		return nil, shared.Errorf(shared.KindConfiguration, "ollama embedding model is required")
	}
	apiURL := ""
	if baseURL != "" {
		apiURL = strings.TrimRight(baseURL, "/") + "/api"
	}
	return &Client{
		embed:      chromem.NewEmbeddingFuncOllama(model, apiURL),
		model:      model,
		maxRetries: maxRetries,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Embed Ollama принимает по одному тексту за запрос
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := shared.Retry(ctx, c.maxRetries, func(ctx context.Context) ([]float32, error) {
			v, err := c.embed(ctx, text)
			if err != nil {
				return nil, shared.NewProviderError("ollama", "embeddings", statusFromError(err), err)
			}
			return v, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// chromem возвращает статус только в тексте ошибки: "...embedding API: 503 Service Unavailable"
var statusPattern = regexp.MustCompile(`embedding API: (\d{3})`)

func statusFromError(err error) int {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}
