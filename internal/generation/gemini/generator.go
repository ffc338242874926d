package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"ragbot/internal/domain"
	"ragbot/internal/geminiclient"
)

const DefaultModel = "gemini-1.5-flash"

type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

type Config struct {
	APIKeyEnv   string
	Model       string
	Temperature float32
	MaxTokens   int
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	client, err := geminiclient.New(ctx, "", cfg.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

func (g *Generator) Name() string { return "gemini" }

func (g *Generator) Model() string { return g.model }

// Generate sends system messages as the system instruction and the
// remaining messages as a single content request.
func (g *Generator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	// models are configured per call; GenerativeModel is not safe to mutate concurrently
	model := g.client.GenerativeModel(g.model)
	if g.temperature > 0 {
		model.SetTemperature(g.temperature)
	}
	if g.maxTokens > 0 {
		model.SetMaxOutputTokens(g.maxTokens)
	}

	var system []genai.Part
	var parts []genai.Part
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, genai.Text(m.Content))
			continue
		}
		parts = append(parts, genai.Text(m.Content))
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}

	rsp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", domain.NewBackendError("gemini", "generate", geminiclient.StatusCode(err), err)
	}

	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil || len(rsp.Candidates[0].Content.Parts) == 0 {
		return "", domain.NewBadResponseError("gemini", "generate", errors.New("no response from Gemini"))
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	return b.String(), nil
}

func (g *Generator) Close() error { return g.client.Close() }
