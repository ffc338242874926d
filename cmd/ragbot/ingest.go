package main

import (
	"context"
	"errors"
	"fmt"

	"ragbot/internal/app"
	"ragbot/internal/domain"
	"ragbot/internal/ingest"
)

type IngestCmd struct {
	Dir     string `help:"Directory of documents to ingest (default from config)." type:"path"`
	Samples bool   `help:"Ingest the built-in sample documents instead of a directory."`
	Reset   bool   `help:"Start from an empty store instead of appending."`
}

func (c *IngestCmd) Run(g *Globals, ctx context.Context) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	emb, closeEmb, err := app.NewEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	if closeEmb != nil {
		defer closeEmb()
	}

	store, err := ingest.OpenStore(cfg.Store.Path, c.Reset)
	if err != nil {
		return err
	}

	var sources []ingest.Source
	if c.Samples {
		sources = ingest.Samples()
	} else {
		dir := c.Dir
		if dir == "" {
			dir = cfg.Ingest.DocumentsDir
		}
		var skipped []error
		sources, skipped = ingest.LoadDirectory(ctx, dir)
		for _, err := range skipped {
			fmt.Printf("  skipped: %v\n", err)
		}
		if len(sources) == 0 {
			fmt.Printf("No documents found in %s (supported: .txt .md .json .html .htm). Try --samples.\n", dir)
			return nil
		}
	}

	opts := []ingest.Option{
		ingest.WithBatchSize(cfg.Embedder.BatchSize),
		ingest.WithConcurrency(cfg.Ingest.Concurrency),
		ingest.WithLogger(logger.Named("ingest")),
	}
	if cfg.Ingest.Chunker.Type == "sentence" {
		opts = append(opts, ingest.WithChunker(ingest.NewSentenceChunker(
			cfg.Ingest.Chunker.SentencesPerChunk, cfg.Ingest.Chunker.OverlapSentences)))
	}

	fmt.Printf("Embedding %d document(s) with %s...\n", len(sources), emb.Name())
	report, err := ingest.NewPipeline(store, emb, opts...).Run(ctx, sources)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return fmt.Errorf("%w; re-run with --reset to rebuild the store", err)
		}
		return err
	}

	for _, r := range report.Rejected {
		fmt.Printf("  rejected: %v\n", r)
	}
	fmt.Printf("Stored %d record(s) from %d source(s) in %s (dimension %d).\n",
		report.Stored, report.Sources, cfg.Store.Path, report.Dimension)
	return nil
}
