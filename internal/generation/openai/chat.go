// Package openai генерация через Chat Completions OpenAI-совместимого API
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"rag_chat/internal/generation"
	"rag_chat/internal/shared"
)

const providerName = "openai-chat"

// Client реализует generation.Provider
type Client struct {
	client *openai.Client
	opts   generation.Options
}

// New создаёт клиент chat completions
func New(opts generation.Options, timeout time.Duration) (*Client, error) {
	if opts.Model == "" {
		return nil, shared.Errorf(shared.KindConfiguration, "generation model is required")
	}

	oc := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		oc.BaseURL = opts.BaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{client: openai.NewClientWithConfig(oc), opts: opts}, nil
}

func (c *Client) Model() string {
	return c.opts.Model
}

func (c *Client) Generate(ctx context.Context, prompt generation.Prompt) (string, error) {
	var messages []openai.ChatCompletionMessage
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.User})

	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: float32(c.opts.Temperature),
	}
	if c.opts.MaxTokens > 0 {
		req.MaxTokens = c.opts.MaxTokens
	}

	resp, err := shared.Retry(ctx, c.opts.MaxRetries, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return resp, classify(err)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", shared.NewProviderError(providerName, "chat", 0, errors.New("no response from LLM"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return shared.NewProviderError(providerName, "chat", apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return shared.NewProviderError(providerName, "chat", reqErr.HTTPStatusCode, err)
	}
	return shared.NewProviderError(providerName, "chat", 0, err)
}
