package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragbot/internal/domain"
)

const (
	DefaultURL   = "http://localhost:8080"
	DefaultModel = "HuggingFaceH4/zephyr-7b-beta"
)

// Client is a Text Generation Inference client for a self-hosted model.
type Client struct {
	url          string
	token        string
	model        string
	maxNewTokens int
	temperature  float64
	client       *http.Client
	maxRetries   int
	logger       *zap.Logger
}

// Config configures the TGI client.
type Config struct {
	URL       string
	Model     string
	APIKeyEnv string
	// MaxNewTokens caps the generated length, 512 when zero.
	MaxNewTokens int
	Temperature  float64
	Timeout      time.Duration
	// MaxRetries is the number of extra attempts on 429, 5xx and transport
	// errors. Zero disables retrying.
	MaxRetries int
	Logger     *zap.Logger
}

// New creates a TGI client. The token is optional for self-hosted endpoints.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxNewTokens == 0 {
		cfg.MaxNewTokens = 512
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var token string
	if cfg.APIKeyEnv != "" {
		token = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		url:          strings.TrimRight(cfg.URL, "/"),
		token:        token,
		model:        cfg.Model,
		maxNewTokens: cfg.MaxNewTokens,
		temperature:  cfg.Temperature,
		client:       &http.Client{Timeout: t},
		maxRetries:   cfg.MaxRetries,
		logger:       logger,
	}
}

// Name returns the identifier of this generator implementation.
func (c *Client) Name() string { return "huggingface" }

func (c *Client) Model() string { return c.model }

type generateRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters generateParams `json:"parameters"`
}

type generateParams struct {
	MaxNewTokens   int      `json:"max_new_tokens"`
	Temperature    *float64 `json:"temperature,omitempty"`
	DoSample       bool     `json:"do_sample"`
	ReturnFullText bool     `json:"return_full_text"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate renders messages with the Zephyr chat template and calls /generate.
// When retries are enabled, 429 and 5xx responses are retried with
// exponential backoff.
func (c *Client) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	body := generateRequest{
		Inputs:     RenderChat(messages),
		Parameters: generateParams{MaxNewTokens: c.maxNewTokens},
	}
	if c.temperature > 0 {
		t := c.temperature
		body.Parameters.Temperature = &t
		body.Parameters.DoSample = true
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("huggingface: encode request: %w", err)
	}

	url := c.url + "/generate"
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("huggingface: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() == nil && attempt < c.maxRetries {
				c.logger.Warn("tgi request failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
				if werr := sleep(ctx, retryDelay(attempt)); werr != nil {
					return "", domain.NewBackendError("huggingface", "generate", 0, werr)
				}
				continue
			}
			return "", domain.NewBackendError("huggingface", "generate", 0, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryAfter(resp.Header.Get("Retry-After"), attempt)
			msg := readError(resp)
			if attempt < c.maxRetries {
				c.logger.Warn("tgi busy, retrying",
					zap.Int("status", resp.StatusCode),
					zap.Int("attempt", attempt+1),
					zap.Duration("delay", delay))
				if werr := sleep(ctx, delay); werr != nil {
					return "", domain.NewBackendError("huggingface", "generate", 0, werr)
				}
				continue
			}
			return "", domain.NewBackendError("huggingface", "generate", resp.StatusCode, errors.New(msg))
		}

		if resp.StatusCode >= 300 {
			msg := readError(resp)
			return "", domain.NewBackendError("huggingface", "generate", resp.StatusCode, errors.New(msg))
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return "", domain.NewBackendError("huggingface", "generate", 0, err)
		}
		return decodeGenerated(payload)
	}
}

// decodeGenerated accepts both the TGI object and the Inference API list shape.
func decodeGenerated(payload []byte) (string, error) {
	var single generateResponse
	if err := json.Unmarshal(payload, &single); err == nil && single.GeneratedText != "" {
		return strings.TrimSpace(single.GeneratedText), nil
	}
	var list []generateResponse
	if err := json.Unmarshal(payload, &list); err == nil && len(list) > 0 && list[0].GeneratedText != "" {
		return strings.TrimSpace(list[0].GeneratedText), nil
	}
	return "", domain.NewBadResponseError("huggingface", "generate", errors.New("no generated text in response"))
}

// WarmUp checks that the endpoint answers /info.
func (c *Client) WarmUp(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/info", nil)
	if err != nil {
		return fmt.Errorf("huggingface: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewBackendError("huggingface", "warmup", 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.NewBackendError("huggingface", "warmup", resp.StatusCode, errors.New(resp.Status))
	}
	return nil
}

// RenderChat formats messages with the Zephyr chat template.
func RenderChat(messages []domain.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			b.WriteString("<|system|>\n")
		case domain.RoleAssistant:
			b.WriteString("<|assistant|>\n")
		default:
			b.WriteString("<|user|>\n")
		}
		b.WriteString(m.Content)
		b.WriteString("</s>\n")
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}

func readError(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return resp.Status
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const maxRetryDelay = 5 * time.Second

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxRetryDelay
	}
	// exponential backoff capped at maxRetryDelay
	d := 200 * time.Millisecond << attempt
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// retryAfter honours a Retry-After header in seconds, never waiting longer
// than maxRetryDelay.
func retryAfter(header string, attempt int) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return retryDelay(attempt)
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}
