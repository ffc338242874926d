package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"ragbot/internal/domain"
	"ragbot/internal/openaiclient"
)

// Client is an OpenAI-compatible embeddings client.
// The same client serves Ollama through its /v1 endpoint.
type Client struct {
	name   string
	model  string
	client *openai.Client
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	// Name labels errors and logs, "openai" when empty.
	Name      string
	BaseURL   string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv.
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		name:   cfg.Name,
		model:  cfg.Model,
		client: openaiclient.New(cfg.BaseURL, key, t),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return c.name }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	rsp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, domain.NewBackendError(c.name, "embed", openaiclient.StatusCode(err), err)
	}
	if len(rsp.Data) != len(texts) {
		return nil, domain.NewBadResponseError(c.name, "embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(rsp.Data)))
	}
	out := make([][]float32, len(texts))
	for _, d := range rsp.Data {
		if d.Index < 0 || d.Index >= len(out) || len(d.Embedding) == 0 {
			return nil, domain.NewBadResponseError(c.name, "embed", errors.New("malformed embedding in response"))
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, domain.NewBadResponseError(c.name, "embed", fmt.Errorf("no embedding returned for input %d", i))
		}
	}
	return out, nil
}
