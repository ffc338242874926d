package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"ragbot/internal/app"
	"ragbot/internal/tui"
)

type ChatCmd struct{}

func (c *ChatCmd) Run(g *Globals, ctx context.Context) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	if cfg.Log.File == "" {
		// stderr belongs to the console.
		logger = zap.NewNop()
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

	fmt.Println("Loading knowledge base...")
	if _, err := deps.Service.Initialize(ctx); err != nil {
		return err
	}

	opts := []tui.Option{tui.WithLogger(logger), tui.WithInfo(func() string {
		var b strings.Builder
		_ = cfg.Display(&b)
		st := deps.Service.Status()
		fmt.Fprintf(&b, "\nKnowledge base: %d record(s), dimension %d, state %s", st.Records, st.Dimension, st.State)
		return b.String()
	})}
	if deps.History != nil {
		opts = append(opts, tui.WithLog(deps.History))
	}

	m := tui.New(ctx, deps.Service, opts...)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
