package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"ragbot/internal/domain"
	"ragbot/internal/geminiclient"
)

const defaultModel = "text-embedding-004"

// Embedder calls the Gemini embedding API.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

type Config struct {
	APIKeyEnv string
	Model     string
}

func New(ctx context.Context, cfg Config) (*Embedder, error) {
	client, err := geminiclient.New(ctx, "", cfg.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Embedder{client: client, model: client.EmbeddingModel(model)}, nil
}

func (e *Embedder) Name() string { return "gemini" }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, domain.NewBackendError("gemini", "embed", geminiclient.StatusCode(err), err)
	}
	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, domain.NewBadResponseError("gemini", "embed", fmt.Errorf("no embedding returned"))
	}
	return rsp.Embedding.Values, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	rsp, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, domain.NewBackendError("gemini", "embed", geminiclient.StatusCode(err), err)
	}
	if len(rsp.Embeddings) != len(texts) {
		return nil, domain.NewBadResponseError("gemini", "embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(rsp.Embeddings)))
	}
	out := make([][]float32, len(texts))
	for i, emb := range rsp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, domain.NewBadResponseError("gemini", "embed", fmt.Errorf("no embedding returned for input %d", i))
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *Embedder) Close() error { return e.client.Close() }
