package memory

import (
	"context"
	"sort"

	"ragbot/internal/domain"
	"ragbot/internal/vector"
)

// Source is the read side of the document store.
type Source interface {
	All() []domain.Record
	Dimension() int
}

// Retriever ranks records by brute-force cosine similarity.
type Retriever struct {
	source Source
}

func New(source Source) *Retriever { return &Retriever{source: source} }

// Retrieve returns up to k records ordered by descending score.
// Equal scores keep insertion order.
func (r *Retriever) Retrieve(ctx context.Context, query []float32, k int) ([]domain.ScoredRecord, error) {
	if k < 1 {
		return nil, domain.NewValidationError("", "k must be at least 1, got %d", k)
	}
	records := r.source.All()
	if len(records) == 0 {
		return []domain.ScoredRecord{}, nil
	}
	if dim := r.source.Dimension(); len(query) != dim {
		return nil, &domain.DimensionMismatchError{Expected: dim, Got: len(query)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredRecord, len(records))
	for i, rec := range records {
		scored[i] = domain.ScoredRecord{Record: rec, Score: vector.Cosine(query, rec.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}
