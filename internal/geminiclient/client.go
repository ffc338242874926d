// Package geminiclient builds Google Gemini clients shared by the embedder
// and the generator.
package geminiclient

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"
	"google.golang.org/api/googleapi"
)

// New creates a client with the key from apiKey, or from the env var keyEnv.
func New(ctx context.Context, apiKey, keyEnv string) (*genai.Client, error) {
	if apiKey == "" && keyEnv != "" {
		apiKey = os.Getenv(keyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key in env %s", keyEnv)
	}
	client, err := genai.NewClient(ctx, genaiopt.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return client, nil
}

// StatusCode extracts the HTTP status from a Google API error, 0 if none.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
