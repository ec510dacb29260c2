// Package responses генерация через OpenAI Responses API (openai-go)
package responses

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"rag_chat/internal/generation"
	"rag_chat/internal/shared"
)

const providerName = "openai-responses"

// Client реализует generation.Provider
type Client struct {
	client openai.Client
	opts   generation.Options
}

// New создаёт клиент. Повторы делает сам SDK (WithMaxRetries).
func New(opts generation.Options, timeout time.Duration) (*Client, error) {
	if opts.Model == "" {
		return nil, shared.Errorf(shared.KindConfiguration, "generation model is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{client: openai.NewClient(reqOpts...), opts: opts}, nil
}

func (c *Client) Model() string {
	return c.opts.Model
}

func (c *Client) Generate(ctx context.Context, prompt generation.Prompt) (string, error) {
	params := responses.ResponseNewParams{
		Model: c.opts.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt.User),
		},
		Temperature: openai.Float(c.opts.Temperature),
	}
	if prompt.System != "" {
		params.Instructions = openai.String(prompt.System)
	}
	if c.opts.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(c.opts.MaxTokens))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", shared.NewProviderError(providerName, "responses", apiErr.StatusCode, err)
		}
		return "", shared.NewProviderError(providerName, "responses", 0, err)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", shared.NewProviderError(providerName, "responses", 0, errors.New("empty output"))
	}
	return text, nil
}
