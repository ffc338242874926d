package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"ragbot/internal/config"
	"ragbot/internal/domain"
	geminiemb "ragbot/internal/embedding/gemini"
	"ragbot/internal/embedding/hashing"
	openaiemb "ragbot/internal/embedding/openai"
	"ragbot/internal/generation/anthropic"
	geminigen "ragbot/internal/generation/gemini"
	"ragbot/internal/generation/huggingface"
	"ragbot/internal/generation/ollama"
	openaigen "ragbot/internal/generation/openai"
	"ragbot/internal/openaiclient"
	"ragbot/internal/retrieval/memory"
	"ragbot/internal/retrieval/pgvector"
	"ragbot/internal/retrieval/qdrant"
)

const defaultOllamaEmbeddingModel = "nomic-embed-text"

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// closer releases a client created by a factory, nil when nothing is held.
type closer func() error

// NewEmbedder builds the configured embedding gateway.
func NewEmbedder(ctx context.Context, cfg config.EmbedderConfig) (domain.Embedder, closer, error) {
	switch cfg.Type {
	case "hashing", "":
		e, err := hashing.NewEmbedder(cfg.Dimension)
		return e, nil, err
	case "openai":
		e, err := openaiemb.NewClient(openaiemb.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.Model,
			Timeout:   seconds(cfg.TimeoutSecs),
		})
		return e, nil, err
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = defaultOllamaEmbeddingModel
		}
		e, err := openaiemb.NewClient(openaiemb.Config{
			Name:    "ollama",
			BaseURL: openaiclient.OllamaBaseURL(cfg.Ollama.BaseURL),
			APIKey:  "ollama",
			Model:   model,
			Timeout: seconds(cfg.TimeoutSecs),
		})
		return e, nil, err
	case "gemini":
		e, err := geminiemb.New(ctx, geminiemb.Config{APIKeyEnv: cfg.Gemini.APIKeyEnv, Model: cfg.Model})
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
}

// NewGenerator builds the configured generation gateway.
func NewGenerator(ctx context.Context, cfg config.GeneratorConfig, logger *zap.Logger) (domain.Generator, closer, error) {
	timeout := seconds(cfg.TimeoutSecs)
	switch cfg.Provider {
	case "openai":
		g, err := openaigen.New(openaigen.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
		return g, nil, err
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		}), nil, nil
	case "huggingface":
		return huggingface.New(huggingface.Config{
			URL:          cfg.HuggingFace.URL,
			Model:        cfg.HuggingFace.Model,
			APIKeyEnv:    cfg.HuggingFace.APIKeyEnv,
			MaxNewTokens: cfg.MaxTokens,
			Temperature:  float64(cfg.Temperature),
			Timeout:      timeout,
			MaxRetries:   cfg.HuggingFace.MaxRetries,
			Logger:       logger.Named("tgi"),
		}), nil, nil
	case "anthropic":
		g, err := anthropic.New(anthropic.Config{
			APIKeyEnv: cfg.Anthropic.APIKeyEnv,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   timeout,
		})
		return g, nil, err
	case "gemini":
		g, err := geminigen.New(ctx, geminigen.Config{
			APIKeyEnv:   cfg.Gemini.APIKeyEnv,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
}

// NewRetriever builds the configured similarity retriever over source.
func NewRetriever(ctx context.Context, cfg config.RetrievalConfig, source memory.Source) (domain.Retriever, closer, error) {
	switch cfg.Backend {
	case "memory", "":
		return memory.New(source), nil, nil
	case "qdrant":
		var key string
		if cfg.Qdrant.APIKeyEnv != "" {
			key = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		return qdrant.New(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     key,
			Collection: cfg.Qdrant.Collection,
			Timeout:    seconds(cfg.Qdrant.TimeoutSecs),
		}), nil, nil
	case "pgvector":
		dsn := os.Getenv(cfg.PgVector.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("pgvector retriever requires %s", cfg.PgVector.DSNEnv)
		}
		r, err := pgvector.Open(ctx, dsn, cfg.PgVector.Table)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown retrieval backend: %s", cfg.Backend)
}
