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

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Generator answers prompts through the chat completions API.
type Generator struct {
	name        string
	model       string
	temperature float32
	maxTokens   int
	client      *openai.Client
}

type Config struct {
	BaseURL     string
	APIKeyEnv   string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// New creates a generator for the OpenAI cloud API.
func New(cfg Config) (*Generator, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	return NewWithClient("openai", openaiclient.New(cfg.BaseURL, key, cfg.Timeout), cfg), nil
}

// NewWithClient creates a generator over any OpenAI-compatible client.
func NewWithClient(name string, client *openai.Client, cfg Config) *Generator {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		name:        name,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      client,
	}
}

func (g *Generator) Name() string { return g.name }

func (g *Generator) Model() string { return g.model }

func (g *Generator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toChatMessages(messages),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domain.NewBackendError(g.name, "generate", openaiclient.StatusCode(err), err)
	}

	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", domain.NewBadResponseError(g.name, "generate", errors.New("no response from model"))
	}

	return rsp.Choices[0].Message.Content, nil
}

func toChatMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
