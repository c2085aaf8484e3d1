package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docindex/internal/app"
	"docindex/internal/config"
	"docindex/internal/logger"
)

func main() {
	slog.SetDefault(logger.New(os.Stdout, "json", "info"))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run performs a single ingestion run. Interrupting it stops the upload
// between batches; everything uploaded so far stays in the index.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	slog.SetDefault(log)
	ctx = logger.WithRunID(ctx, logger.NewRunID())

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "bootstrap failed", "error", err)
		return err
	}
	defer deps.Close()

	a, err := app.New(cfg, deps)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize app", "error", err)
		return err
	}

	slog.InfoContext(ctx, "ingestion started", "index", cfg.IndexName, "data_dir", cfg.DataDir, "glob", cfg.DataGlob)
	summary, err := a.Run(ctx)
	fmt.Println(summary)
	return err
}
