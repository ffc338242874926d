package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := New(Config{BaseURL: srv.URL + "/v1", APIKey: "test-key", Model: "test-model", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return g
}

var messages = []domain.Message{
	{Role: domain.RoleSystem, Content: "be helpful"},
	{Role: domain.RoleUser, Content: "What is RAG?"},
}

func TestGenerate(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "What is RAG?", req.Messages[1].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"test-model","choices":[
			{"index":0,"message":{"role":"assistant","content":"Retrieval-augmented generation."},"finish_reason":"stop"}
		]}`))
	})

	answer, err := g.Generate(context.Background(), messages)
	require.NoError(t, err)
	assert.Equal(t, "Retrieval-augmented generation.", answer)
	assert.Equal(t, "openai", g.Name())
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   domain.BackendErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, domain.BackendAuth},
		{"rate limited", http.StatusTooManyRequests, domain.BackendQuota},
		{"server error", http.StatusBadGateway, domain.BackendConnectivity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			})
			_, err := g.Generate(context.Background(), messages)
			var be *domain.BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.kind, be.Kind)
			assert.Equal(t, tt.status, be.StatusCode)
			assert.ErrorIs(t, err, domain.ErrBackend)
		})
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})
	_, err := g.Generate(context.Background(), messages)
	assert.True(t, domain.IsBackendKind(err, domain.BackendBadResponse))
}

func TestGenerate_Canceled(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, messages)
	assert.True(t, domain.IsBackendKind(err, domain.BackendTimeout))
}
