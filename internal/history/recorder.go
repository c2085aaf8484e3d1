package history

import (
	"context"
	"time"

	"docindex/internal/logger"
	"docindex/internal/upload"
)

// finishTimeout bounds the final writes of a run whose context was cancelled.
const finishTimeout = 10 * time.Second

// Recorder persists the lifecycle of the current run, keyed by the run id
// carried in the context. Failed batches and the final result are written
// even after the run context is cancelled.
type Recorder struct {
	repo      Repository
	indexName string
}

func NewRecorder(repo Repository, indexName string) *Recorder {
	return &Recorder{repo: repo, indexName: indexName}
}

func (r *Recorder) StartRun(ctx context.Context, total int) error {
	return r.repo.StartRun(ctx, &Run{
		ID:        logger.RunID(ctx),
		IndexName: r.indexName,
		Status:    StatusRunning,
		Total:     total,
	})
}

func (r *Recorder) SaveFailedBatch(ctx context.Context, failed *upload.RemoteWriteError) error {
	ctx, cancel := detach(ctx)
	defer cancel()
	fb := &FailedBatch{
		RunID:      logger.RunID(ctx),
		BatchIndex: failed.BatchIndex,
		RecordIDs:  failed.IDs,
	}
	if failed.Err != nil {
		fb.Error = failed.Err.Error()
	}
	return r.repo.SaveFailedBatch(ctx, fb)
}

func (r *Recorder) FinishRun(ctx context.Context, summary upload.Summary) error {
	ctx, cancel := detach(ctx)
	defer cancel()
	run := &Run{
		ID:         logger.RunID(ctx),
		IndexName:  r.indexName,
		Status:     StatusCompleted,
		Total:      summary.Total,
		Uploaded:   summary.Uploaded,
		Duplicates: summary.Duplicates,
		Batches:    summary.Batches,
	}
	if !summary.Complete() {
		run.Status = StatusFailed
	}
	if summary.Err != nil {
		run.Error = summary.Err.Error()
	}
	return r.repo.FinishRun(ctx, run)
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}
