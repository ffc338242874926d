package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
)

var messages = []domain.Message{
	{Role: domain.RoleSystem, Content: "be helpful"},
	{Role: domain.RoleUser, Content: "What is RAG?"},
}

func TestRenderChat(t *testing.T) {
	want := "<|system|>\nbe helpful</s>\n<|user|>\nWhat is RAG?</s>\n<|assistant|>\n"
	assert.Equal(t, want, RenderChat(messages))
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, RenderChat(messages), req.Inputs)
		assert.Equal(t, 64, req.Parameters.MaxNewTokens)
		assert.False(t, req.Parameters.ReturnFullText)
		_, _ = w.Write([]byte(`{"generated_text":"  A retrieval pattern.  "}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, MaxNewTokens: 64})
	answer, err := c.Generate(context.Background(), messages)
	require.NoError(t, err)
	assert.Equal(t, "A retrieval pattern.", answer)
}

func TestGenerate_ListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"generated_text":"from the list"}]`))
	}))
	defer srv.Close()

	answer, err := New(Config{URL: srv.URL}).Generate(context.Background(), messages)
	require.NoError(t, err)
	assert.Equal(t, "from the list", answer)
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is overloaded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"generated_text":"finally"}`))
	}))
	defer srv.Close()

	answer, err := New(Config{URL: srv.URL, MaxRetries: 3}).Generate(context.Background(), messages)
	require.NoError(t, err)
	assert.Equal(t, "finally", answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerate_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL, MaxRetries: 2}).Generate(context.Background(), messages)
	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.BackendQuota, be.Kind)
	assert.Contains(t, be.Error(), "rate limited")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerate_NoRetriesByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL}).Generate(context.Background(), messages)
	assert.True(t, domain.IsBackendKind(err, domain.BackendConnectivity))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_LongRetryAfterIsCapped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"generated_text":"after the wait"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*maxRetryDelay)
	defer cancel()
	answer, err := New(Config{URL: srv.URL, MaxRetries: 1}).Generate(ctx, messages)
	require.NoError(t, err)
	assert.Equal(t, "after the wait", answer)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		header  string
		attempt int
		want    time.Duration
	}{
		{"", 0, 200 * time.Millisecond},
		{"garbage", 1, 400 * time.Millisecond},
		{"-3", 0, 200 * time.Millisecond},
		{"0", 4, 0},
		{"2", 0, 2 * time.Second},
		{"3600", 0, maxRetryDelay},
		{"", 40, maxRetryDelay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryAfter(tt.header, tt.attempt), "header %q attempt %d", tt.header, tt.attempt)
	}
}

func TestGenerate_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL}).Generate(context.Background(), messages)
	assert.True(t, domain.IsBackendKind(err, domain.BackendAuth))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{URL: srv.URL}).Generate(ctx, messages)
	assert.True(t, domain.IsBackendKind(err, domain.BackendTimeout))
}

func TestWarmUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/info" {
			_, _ = w.Write([]byte(`{"model_id":"HuggingFaceH4/zephyr-7b-beta"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, New(Config{URL: srv.URL}).WarmUp(context.Background()))
}
