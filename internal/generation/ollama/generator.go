package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"ragbot/internal/domain"
	openaigen "ragbot/internal/generation/openai"
	"ragbot/internal/openaiclient"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

// Generator talks to a local Ollama server through its OpenAI-compatible API.
type Generator struct {
	*openaigen.Generator
	client *openai.Client
	model  string
}

type Config struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func New(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	// Ollama ignores the key but the client insists on one.
	client := openaiclient.New(openaiclient.OllamaBaseURL(cfg.BaseURL), "ollama", cfg.Timeout)
	return &Generator{
		Generator: openaigen.NewWithClient("ollama", client, openaigen.Config{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}),
		client: client,
		model:  cfg.Model,
	}
}

// WarmUp checks that the server is reachable and the model has been pulled.
func (g *Generator) WarmUp(ctx context.Context) error {
	list, err := g.client.ListModels(ctx)
	if err != nil {
		return domain.NewBackendError("ollama", "warmup", openaiclient.StatusCode(err), err)
	}
	for _, m := range list.Models {
		if m.ID == g.model || strings.TrimSuffix(m.ID, ":latest") == g.model {
			return nil
		}
	}
	return domain.NewBadResponseError("ollama", "warmup",
		fmt.Errorf("model %q is not available; run `ollama pull %s`", g.model, g.model))
}
