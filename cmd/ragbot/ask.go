package main

import (
	"context"
	"fmt"
	"strings"

	"ragbot/internal/app"
)

type AskCmd struct {
	Question []string `arg:"" help:"The question to answer."`
}

func (c *AskCmd) Run(g *Globals, ctx context.Context) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if _, err := deps.Service.Initialize(ctx); err != nil {
		return err
	}
	res, err := deps.Service.Ask(ctx, strings.Join(c.Question, " "))
	if err != nil {
		return err
	}
	deps.Record(ctx, res)

	fmt.Println(res.Answer)
	if len(res.Records) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, r := range res.Records {
			fmt.Printf("  %d. %s (score %.3f)\n", i+1, r.Record.Label(), r.Score)
		}
	}
	return nil
}
