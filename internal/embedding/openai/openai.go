// Package openai эмбеддинги через OpenAI-совместимый API (OpenAI, LM Studio, vLLM и т.п.)
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"rag_chat/internal/shared"
)

const providerName = "openai"

// Config параметры клиента
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client реализует embedding.Provider
type Client struct {
	client     *openai.Client
	model      string
	maxRetries int
}

// New создаёт клиент; пустой BaseURL означает api.openai.com
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, shared.Errorf(shared.KindConfiguration, "embedding model is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client:     openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Embed отправляет все тексты одним запросом, повторяя при 429/5xx
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := shared.Retry(ctx, c.maxRetries, func(ctx context.Context) (openai.EmbeddingResponse, error) {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			return resp, classify(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, shared.NewProviderError(providerName, "embeddings", 0,
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	// API не обещает порядок, восстанавливаем по Index
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}

// classify переводит ошибки go-openai в ProviderError
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return shared.NewProviderError(providerName, "embeddings", apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return shared.NewProviderError(providerName, "embeddings", reqErr.HTTPStatusCode, err)
	}
	return shared.NewProviderError(providerName, "embeddings", 0, err)
}
