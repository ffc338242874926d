package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ragbot/internal/docstore"
	"ragbot/internal/domain"
)

// Store is the part of the document store the pipeline writes to.
type Store interface {
	Append(records []domain.Record) (docstore.AppendResult, error)
	Persist() error
	Dimension() int
}

// Report summarises an ingestion run.
type Report struct {
	Sources   int
	Chunks    int
	Stored    int
	Rejected  []error
	Dimension int
}

// Pipeline embeds sources and appends them to the document store.
type Pipeline struct {
	store       Store
	embedder    domain.Embedder
	chunker     Chunker
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunker splits every source before embedding.
func WithChunker(c Chunker) Option { return func(p *Pipeline) { p.chunker = c } }

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of embedding requests in flight.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func NewPipeline(store Store, embedder domain.Embedder, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		batchSize:   32,
		concurrency: 4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenStore prepares the store an ingestion run appends to. Without reset the
// persisted records are kept; a store that does not exist yet starts empty.
func OpenStore(path string, reset bool) (*docstore.Store, error) {
	store := docstore.New(path)
	if reset {
		return store, nil
	}
	if _, err := store.Load(); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return store, nil
}

// Run embeds sources in order and persists the store. An embedding failure
// aborts the run before anything is written.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*Report, error) {
	report := &Report{Sources: len(sources)}

	var units []Source
	for _, src := range sources {
		if strings.TrimSpace(src.Content) == "" {
			report.Rejected = append(report.Rejected, domain.NewValidationError(src.Name(), "empty content"))
			continue
		}
		if p.chunker == nil {
			units = append(units, src)
			continue
		}
		units = append(units, p.chunker.Chunk(src, uuid.NewString())...)
	}
	report.Chunks = len(units)
	if len(units) == 0 {
		report.Dimension = p.store.Dimension()
		return report, nil
	}

	vectors, err := p.embed(ctx, units)
	if err != nil {
		return report, err
	}

	records := make([]domain.Record, len(units))
	for i, u := range units {
		records[i] = domain.Record{
			ID:        uuid.NewString(),
			Content:   u.Content,
			Meta:      cloneMeta(u.Meta),
			Embedding: vectors[i],
		}
	}
	res, err := p.store.Append(records)
	if err != nil {
		return report, fmt.Errorf("append records: %w", err)
	}
	for _, r := range res.Rejected {
		report.Rejected = append(report.Rejected, r)
		p.logger.Warn("record rejected", zap.String("id", r.RecordID), zap.String("reason", r.Reason))
	}
	report.Stored = res.Added
	report.Dimension = p.store.Dimension()

	if err := p.store.Persist(); err != nil {
		return report, fmt.Errorf("persist document store: %w", err)
	}
	p.logger.Info("ingestion complete",
		zap.Int("sources", report.Sources),
		zap.Int("chunks", report.Chunks),
		zap.Int("stored", report.Stored),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("dimension", report.Dimension))
	return report, nil
}

// embed runs batches concurrently; results keep the order of units.
func (p *Pipeline) embed(ctx context.Context, units []Source) ([][]float32, error) {
	vectors := make([][]float32, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for start := 0; start < len(units); start += p.batchSize {
		end := min(start+p.batchSize, len(units))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, u := range units[start:end] {
				texts = append(texts, u.Content)
			}
			out, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			if len(out) != len(texts) {
				return domain.NewBadResponseError(p.embedder.Name(), "embed",
					fmt.Errorf("got %d embeddings for %d texts", len(out), len(texts)))
			}
			copy(vectors[start:end], out)
			p.logger.Debug("embedded batch", zap.Int("from", start), zap.Int("to", end))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
