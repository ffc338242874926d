package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ragbot/internal/config"
	"ragbot/internal/logging"
)

// Globals are flags shared by every command.
type Globals struct {
	ConfigFile string `name:"config" help:"Path to YAML config file (default: ./config.yaml, then ~/.config/ragbot/config.yaml)." type:"path"`
	LogLevel   string `name:"log-level" help:"Override the log level."`
}

type CLI struct {
	Globals

	Ingest IngestCmd `cmd:"" help:"Embed documents into the document store."`
	Ask    AskCmd    `cmd:"" help:"Answer a single question and exit."`
	Chat   ChatCmd   `cmd:"" help:"Start the interactive chat console."`
	Serve  ServeCmd  `cmd:"" help:"Serve the HTTP API."`
	Show   ConfigCmd `cmd:"" name:"config" help:"Show the effective configuration."`
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("ragbot"),
		kong.Description("Answer questions from your own documents."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}

// load reads the configuration and builds the logger for a command.
func (g *Globals) load() (*config.AppConfig, *zap.Logger, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if g.ConfigFile == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(g.ConfigFile)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
