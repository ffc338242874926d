package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ragbot/internal/app"
	"ragbot/internal/server"
)

type ServeCmd struct {
	Addr string `help:"Listen address (default from config)."`
}

func (c *ServeCmd) Run(g *Globals, ctx context.Context) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	n, err := deps.Service.Initialize(ctx)
	if err != nil {
		return err
	}
	logger.Info("serving knowledge base", zap.Int("records", n), zap.String("store", cfg.Store.Path))

	var opts []server.Option
	if deps.History != nil {
		opts = append(opts, server.WithHistory(deps.History))
	}
	return server.New(deps.Service, cfg.Server, logger.Named("http"), opts...).Run(ctx)
}
