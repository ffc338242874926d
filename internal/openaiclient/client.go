// Package openaiclient builds go-openai clients for OpenAI and
// OpenAI-compatible endpoints such as Ollama's /v1 surface.
package openaiclient

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// New returns a client for baseURL. An empty baseURL targets api.openai.com.
func New(baseURL, apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// OllamaBaseURL maps an Ollama server address onto its OpenAI-compatible API.
func OllamaBaseURL(server string) string {
	server = strings.TrimRight(server, "/")
	if strings.HasSuffix(server, "/v1") {
		return server
	}
	return server + "/v1"
}

// StatusCode extracts the HTTP status from a go-openai error, 0 if none.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
