// Package ollama provides an Ollama-backed embedding client.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/doctalk-ai/doctalk/engine/domain"
	"github.com/doctalk-ai/doctalk/pkg/resilience"
)

// Client produces embeddings via Ollama's HTTP API. Calls go through a
// circuit breaker so a dying model server fails fast instead of queueing.
type Client struct {
	baseURL string
	model   string
	dims    int
	http    *http.Client
	breaker *resilience.Breaker
}

// New creates an Ollama embedding client for the given model. dims is the
// embedding dimensionality the model produces (used when creating vector
// collections).
func New(baseURL, model string, dims int) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		http:    &http.Client{Timeout: 60 * time.Second},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

// Model returns the embedding model name.
func (c *Client) Model() string { return c.model }

// Dimensions returns the embedding vector size.
func (c *Client) Dimensions() int { return c.dims }

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("ollama embed: %w", domain.ErrTimeout)
		}
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %q", c.model)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		vec, err = c.embed(ctx, text)
		return err
	})
	return vec, err
}

// EmbedBatch embeds texts sequentially, preserving order. Ollama serves one
// prompt at a time per model, so parallel requests only add queueing.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
