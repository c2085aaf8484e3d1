package app

import (
	"context"
	"errors"
	"log/slog"

	wstore "docindex/internal/adapter/weaviate"
	"docindex/internal/config"
	"docindex/internal/events"
	"docindex/internal/history"
	"docindex/internal/loader"
	"docindex/internal/logger"
	"docindex/internal/pipeline"
	"docindex/internal/text"
	"docindex/internal/upload"
)

type App struct {
	Pipeline *pipeline.Pipeline
	Store    *wstore.Store
	History  history.Repository
}

func New(cfg *config.Config, deps *Dependencies) (*App, error) {
	splitter, err := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	store := wstore.NewStore(deps.Weaviate, cfg.IndexName)

	a := &App{Store: store}
	var opts []pipeline.Option
	if deps.DB != nil {
		a.History = history.NewPostgresRepo(deps.DB)
		opts = append(opts, pipeline.WithRecorder(history.NewRecorder(a.History, cfg.IndexName)))
	}
	if deps.NSQProducer != nil {
		pub := events.NewProgressPublisher(deps.NSQProducer)
		opts = append(opts, pipeline.WithObserver(pub), pipeline.WithRecorder(pub))
	}

	a.Pipeline = pipeline.New(
		pipeline.Config{
			BatchSize:        cfg.BatchSize,
			MaxRequestBytes:  cfg.MaxRequestBytes,
			EmbedConcurrency: cfg.EmbedConcurrency,
		},
		loader.NewDirLoader(cfg.DataDir, cfg.DataGlob),
		splitter,
		deps.Embedder,
		store,
		opts...,
	)
	return a, nil
}

// Run performs one ingestion run and reports the index size afterwards.
func (a *App) Run(ctx context.Context) (upload.Summary, error) {
	if a.History != nil {
		last, err := a.History.LastRun(ctx)
		switch {
		case errors.Is(err, history.ErrNoRuns):
			slog.InfoContext(ctx, "no previous ingestion run")
		case err != nil:
			slog.WarnContext(ctx, "failed to read previous run", "error", err)
		default:
			slog.InfoContext(ctx, "previous ingestion run", "previous_run_id", last.ID,
				"status", last.Status, "uploaded", last.Uploaded, "total", last.Total)
		}
	}

	summary, err := a.Pipeline.Run(ctx)
	if err != nil && a.History != nil {
		a.logFailedBatches(ctx)
	}

	if summary.Uploaded > 0 {
		if count, cerr := a.Store.Count(ctx); cerr != nil {
			slog.WarnContext(ctx, "failed to count index objects", "error", cerr)
		} else {
			slog.InfoContext(ctx, "index object count", "count", count)
		}
	}
	return summary, err
}

// logFailedBatches reports the batches of this run kept in the ledger, so
// the rejected record ids end up next to the run's final summary.
func (a *App) logFailedBatches(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	batches, err := a.History.ListFailedBatches(ctx, logger.RunID(ctx))
	if err != nil {
		slog.WarnContext(ctx, "failed to list failed batches", "error", err)
		return
	}
	for _, fb := range batches {
		slog.WarnContext(ctx, "failed batch recorded", "batch", fb.BatchIndex,
			"records", len(fb.RecordIDs), "record_ids", fb.RecordIDs, "error", fb.Error)
	}
}
