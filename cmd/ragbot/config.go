package main

import (
	"context"
	"fmt"
	"os"
)

type ConfigCmd struct{}

func (c *ConfigCmd) Run(g *Globals, ctx context.Context) error {
	cfg, _, err := g.load()
	if err != nil {
		return err
	}
	if err := cfg.Display(os.Stdout); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nWarning: %v\n", err)
	}
	return nil
}
