package domain

import (
	"context"
	"time"
)

// Record is one retrievable unit of knowledge persisted in the document store.
type Record struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta"`
	Embedding []float32      `json:"embedding"`
}

// ScoredRecord is a record paired with its similarity to a query.
type ScoredRecord struct {
	Record Record
	Score  float64
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat-style message sent to a generation backend.
type Message struct {
	Role    Role
	Content string
}

// QueryResult is the outcome of a single question.
type QueryResult struct {
	Question    string
	Answer      string
	Records     []ScoredRecord
	NumRecords  int
	ContextUsed int
	// Grounding is the word overlap between answer and supplied context in [0,1].
	// It is informational only.
	Grounding float64
	Elapsed   time.Duration
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces an answer for an assembled prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Retriever ranks stored records by similarity to a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, query []float32, k int) ([]ScoredRecord, error)
}

// Indexer is implemented by retrievers that keep their own copy of the records.
type Indexer interface {
	Index(ctx context.Context, records []Record) error
}

// Warmer is implemented by gateways that can check their backend before use.
type Warmer interface {
	WarmUp(ctx context.Context) error
}

// Label names a record for display: its filename when known, else its id.
func (r Record) Label() string {
	if name, ok := r.Meta["filename"].(string); ok && name != "" {
		return name
	}
	return r.ID
}
