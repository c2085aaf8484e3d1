package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"docindex/internal/upload"
)

type Source interface {
	Load(ctx context.Context) ([]upload.Chunk, error)
}

type Splitter interface {
	Split(docs []upload.Chunk) []upload.Chunk
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Recorder is told about the lifecycle of a run. Recorder failures are
// logged and never fail the run. SaveFailedBatch and FinishRun receive a
// context that outlives cancellation of the run.
type Recorder interface {
	StartRun(ctx context.Context, total int) error
	SaveFailedBatch(ctx context.Context, failed *upload.RemoteWriteError) error
	FinishRun(ctx context.Context, summary upload.Summary) error
}

// recordTimeout bounds recording the outcome once the run context is gone.
const recordTimeout = 10 * time.Second

type Config struct {
	BatchSize        int
	MaxRequestBytes  int
	EmbedConcurrency int
}

type Pipeline struct {
	cfg       Config
	source    Source
	splitter  Splitter
	embedder  Embedder
	sink      upload.Sink
	observers []upload.Observer
	recorders []Recorder
}

type Option func(*Pipeline)

func WithObserver(o upload.Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorders = append(p.recorders, r) }
}

func New(cfg Config, source Source, splitter Splitter, embedder Embedder, sink upload.Sink, opts ...Option) *Pipeline {
	if cfg.EmbedConcurrency < 1 {
		cfg.EmbedConcurrency = 1
	}
	p := &Pipeline{
		cfg:      cfg,
		source:   source,
		splitter: splitter,
		embedder: embedder,
		sink:     sink,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run loads, splits, embeds and uploads the corpus once. The returned
// summary always carries the run error, so a run that fails before the
// upload stage never reads as complete.
func (p *Pipeline) Run(ctx context.Context) (upload.Summary, error) {
	start := time.Now()

	slog.InfoContext(ctx, "loading documents")
	docs, err := p.source.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load documents: %w", err)
		slog.ErrorContext(ctx, "loading failed", "error", err)
		return upload.Summary{Err: err}, err
	}

	chunks := p.splitter.Split(docs)
	slog.InfoContext(ctx, "splitting", "documents", len(docs), "chunks", len(chunks))

	slog.InfoContext(ctx, "embedding", "chunks", len(chunks), "concurrency", p.cfg.EmbedConcurrency)
	records, err := p.embed(ctx, chunks)
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return upload.Summary{Total: len(chunks), Err: err}, err
	}

	records, duplicates := upload.Dedupe(records)
	summary := upload.Summary{Total: len(records), Duplicates: duplicates}
	if duplicates > 0 {
		slog.InfoContext(ctx, "dropped duplicate chunks", "count", duplicates)
	}

	for _, r := range p.recorders {
		if err := r.StartRun(ctx, summary.Total); err != nil {
			slog.WarnContext(ctx, "failed to record run start", "error", err)
		}
	}

	opts := []upload.DriverOption{
		upload.WithObserver(upload.ObserverFunc(func(context.Context, upload.Progress) {
			summary.Batches++
		})),
	}
	for _, o := range p.observers {
		opts = append(opts, upload.WithObserver(o))
	}

	slog.InfoContext(ctx, "uploading", "records", summary.Total,
		"batch_size", p.cfg.BatchSize, "max_request_bytes", p.cfg.MaxRequestBytes)
	driver := upload.NewDriver(p.sink, opts...)
	summary.Uploaded, summary.Err = driver.Run(ctx, upload.MakeBatches(records, p.cfg.BatchSize, p.cfg.MaxRequestBytes))

	p.recordOutcome(ctx, summary)

	attrs := []any{
		"total", summary.Total,
		"uploaded", summary.Uploaded,
		"duplicates", summary.Duplicates,
		"batches", summary.Batches,
		"duration", time.Since(start),
	}
	if summary.Err != nil {
		slog.ErrorContext(ctx, summary.String(), append(attrs, "error", summary.Err)...)
	} else {
		slog.InfoContext(ctx, summary.String(), attrs...)
	}
	return summary, summary.Err
}

// recordOutcome runs detached from cancellation so an interrupted run is
// still recorded as finished.
func (p *Pipeline) recordOutcome(ctx context.Context, summary upload.Summary) {
	if len(p.recorders) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	var failed *upload.RemoteWriteError
	if errors.As(summary.Err, &failed) {
		for _, r := range p.recorders {
			if err := r.SaveFailedBatch(ctx, failed); err != nil {
				slog.WarnContext(ctx, "failed to record failed batch", "batch", failed.BatchIndex, "error", err)
			}
		}
	}
	for _, r := range p.recorders {
		if err := r.FinishRun(ctx, summary); err != nil {
			slog.WarnContext(ctx, "failed to record run result", "error", err)
		}
	}
}

// embed computes vectors with a bounded pool. Records keep chunk order.
func (p *Pipeline) embed(ctx context.Context, chunks []upload.Chunk) ([]upload.Record, error) {
	records := make([]upload.Record, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			values, err := p.embedder.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			rec, err := upload.NewRecord(c, values)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
