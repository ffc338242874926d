package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragbot/internal/domain"
)

const upsertBatchSize = 256

// Retriever is a minimal REST client to a Qdrant collection.
// The collection mirrors the document store and uses cosine distance.
type Retriever struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func New(cfg Config) *Retriever {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Retriever{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Index recreates the collection and uploads every record.
func (r *Retriever) Index(ctx context.Context, records []domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.do(ctx, http.MethodDelete, r.collectionURL(), nil, nil, http.StatusNotFound); err != nil {
		return err
	}
	r.dimension = 0
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Embedding)
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := r.do(ctx, http.MethodPut, r.collectionURL(), body, nil); err != nil {
		return err
	}
	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			rec := records[i]
			if len(rec.Embedding) != dim {
				return &domain.DimensionMismatchError{Expected: dim, Got: len(rec.Embedding)}
			}
			points = append(points, point{
				ID:     pointID(rec.ID),
				Vector: rec.Embedding,
				Payload: map[string]any{
					"record_id": rec.ID,
					"content":   rec.Content,
					"meta":      rec.Meta,
					"seq":       i,
				},
			})
		}
		body := map[string]any{"points": points}
		if err := r.do(ctx, http.MethodPut, r.collectionURL()+"/points?wait=true", body, nil); err != nil {
			return err
		}
	}
	r.dimension = dim
	return nil
}

// tieSlack is how many extra hits are fetched beyond k so that equal scores
// at the k-th position can be ordered by insertion sequence. Ties wider than
// this fall back to Qdrant's own order.
const tieSlack = 32

// Retrieve searches the collection. Equal scores are ordered by insertion sequence.
func (r *Retriever) Retrieve(ctx context.Context, query []float32, k int) ([]domain.ScoredRecord, error) {
	if k < 1 {
		return nil, domain.NewValidationError("", "k must be at least 1, got %d", k)
	}
	r.mu.RLock()
	dim := r.dimension
	r.mu.RUnlock()
	if dim == 0 {
		return []domain.ScoredRecord{}, nil
	}
	if len(query) != dim {
		return nil, &domain.DimensionMismatchError{Expected: dim, Got: len(query)}
	}

	req := map[string]any{
		"vector":       query,
		"limit":        k + tieSlack,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []struct {
			Score   float64   `json:"score"`
			Vector  []float32 `json:"vector"`
			Payload struct {
				RecordID string         `json:"record_id"`
				Content  string         `json:"content"`
				Meta     map[string]any `json:"meta"`
				Seq      int            `json:"seq"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := r.do(ctx, http.MethodPost, r.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}

	type hit struct {
		scored domain.ScoredRecord
		seq    int
	}
	hits := make([]hit, 0, len(resp.Result))
	for _, p := range resp.Result {
		hits = append(hits, hit{
			scored: domain.ScoredRecord{
				Record: domain.Record{
					ID:        p.Payload.RecordID,
					Content:   p.Payload.Content,
					Meta:      p.Payload.Meta,
					Embedding: p.Vector,
				},
				Score: p.Score,
			},
			seq: p.Payload.Seq,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].scored.Score != hits[j].scored.Score {
			return hits[i].scored.Score > hits[j].scored.Score
		}
		return hits[i].seq < hits[j].seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.ScoredRecord, len(hits))
	for i, h := range hits {
		out[i] = h.scored
	}
	return out, nil
}

func (r *Retriever) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", r.url, r.collection)
}

// pointID maps arbitrary record ids onto the UUIDs Qdrant accepts.
func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String()
}

func (r *Retriever) do(ctx context.Context, method, url string, body, out any, okStatus ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("api-key", r.apiKey)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return domain.NewBackendError("qdrant", method, 0, err)
	}
	defer resp.Body.Close()
	for _, s := range okStatus {
		if resp.StatusCode == s {
			return nil
		}
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewBackendError("qdrant", method, resp.StatusCode,
			fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg))))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewBackendError("qdrant", method, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}
