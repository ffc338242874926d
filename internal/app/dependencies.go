package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ragbot/internal/config"
	"ragbot/internal/docstore"
	"ragbot/internal/domain"
	"ragbot/internal/history"
	"ragbot/internal/prompt"
	"ragbot/internal/service"
)

// Dependencies holds everything the query side of the application needs.
type Dependencies struct {
	Config *config.AppConfig
	Logger *zap.Logger

	Store     *docstore.Store
	Embedder  domain.Embedder
	Generator domain.Generator
	Retriever domain.Retriever
	Service   *service.RAGService
	// History is nil when the conversation log is disabled.
	History *history.Log

	closers []closer
}

// NewDependencies wires the orchestrator from configuration. It does not
// initialize it.
func NewDependencies(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger, Store: docstore.New(cfg.Store.Path)}

	if err := d.init(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}

	d.Service = service.NewRAGService(d.Store, d.Embedder, d.Retriever, d.Generator,
		service.WithTopK(cfg.Retrieval.TopK),
		service.WithAssembler(prompt.NewAssembler(cfg.Prompt.MaxContextChars)),
		service.WithRetrieverName(cfg.Retrieval.Backend),
		service.WithLogger(logger.Named("service")),
	)
	return d, nil
}

func (d *Dependencies) init(ctx context.Context) error {
	cfg := d.Config

	emb, c, err := NewEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	d.Embedder = emb
	d.track(c)

	gen, c, err := NewGenerator(ctx, cfg.Generator, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	d.Generator = gen
	d.track(c)

	retr, c, err := NewRetriever(ctx, cfg.Retrieval, d.Store)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}
	d.Retriever = retr
	d.track(c)

	if cfg.History.Enabled {
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open conversation log: %w", err)
		}
		d.History = h
		d.track(h.Close)
	}
	return nil
}

func (d *Dependencies) track(c closer) {
	if c != nil {
		d.closers = append(d.closers, c)
	}
}

// Record appends an exchange to the conversation log when it is enabled.
// Failures are logged, never returned.
func (d *Dependencies) Record(ctx context.Context, res *domain.QueryResult) {
	if d.History == nil || res == nil {
		return
	}
	if _, err := d.History.Append(ctx, history.EntryFor(res)); err != nil {
		d.Logger.Warn("failed to record exchange", zap.Error(err))
	}
}

// Close releases every client in reverse creation order.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
