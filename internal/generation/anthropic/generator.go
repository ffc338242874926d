package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"ragbot/internal/domain"
)

const DefaultModel = "claude-3-5-haiku-latest"

type Generator struct {
	model     string
	maxTokens int64
	client    anthropic.Client
}

type Config struct {
	// BaseURL overrides the API endpoint, mainly for proxies.
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func New(cfg Config) (*Generator, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(key),
		anthropicopt.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Generator{model: model, maxTokens: maxTokens, client: client}, nil
}

func (g *Generator) Name() string { return "anthropic" }

func (g *Generator) Model() string { return g.model }

// Generate sends system messages as the system prompt and the rest as turns.
func (g *Generator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
	}
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			req.System = append(req.System, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			req.Messages = append(req.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			req.Messages = append(req.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	rsp, err := g.client.Messages.New(ctx, req)
	if err != nil {
		return "", domain.NewBackendError("anthropic", "generate", statusCode(err), err)
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	result := b.String()
	if len(result) == 0 {
		return "", domain.NewBadResponseError("anthropic", "generate", errors.New("no response from Anthropic"))
	}

	return result, nil
}

func statusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
