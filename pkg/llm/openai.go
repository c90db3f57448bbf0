// Package llm provides the answer-generation client backed by an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/doctalk-ai/doctalk/engine/domain"
)

// chatAPI is the slice of the OpenAI client the generator needs.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client generates answers from prompts.
type Client struct {
	api   chatAPI
	model string
}

// New creates a generation client. baseURL may point at any
// OpenAI-compatible endpoint (OpenRouter, a local vLLM, etc.); leave it
// empty for the default OpenAI endpoint.
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// NewWithAPI creates a client with an injected chat API, for tests.
func NewWithAPI(api chatAPI, model string) *Client {
	return &Client{api: api, model: model}
}

// Model returns the chat model name.
func (c *Client) Model() string { return c.model }

// Generate produces a completion for the prompt. Rate limits and deadline
// expiry map to the shared sentinels so callers can classify without
// knowing the provider. No retries happen here.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &domain.GenerationError{Wrapped: fmt.Errorf("llm: empty response from %s", c.model)}
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("llm: %w", domain.ErrRateLimited)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("llm: %w", domain.ErrTimeout)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("llm: %w", domain.ErrTimeout)
	}
	return &domain.GenerationError{Wrapped: err}
}
