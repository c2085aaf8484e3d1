package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"docindex/internal/config"
	"docindex/internal/logger"
	"docindex/internal/upload"
)

// Publisher is satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type ProgressEvent struct {
	RunID      string    `json:"run_id"`
	BatchIndex int       `json:"batch_index"`
	BatchSize  int       `json:"batch_size"`
	Uploaded   int       `json:"uploaded"`
	Timestamp  time.Time `json:"timestamp"`
}

type RunEvent struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Uploaded   int       `json:"uploaded"`
	Duplicates int       `json:"duplicates"`
	Batches    int       `json:"batches"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProgressPublisher mirrors upload progress onto NSQ. Delivery is best
// effort: publish failures are logged and never interrupt a run.
type ProgressPublisher struct {
	pub Publisher
	now func() time.Time
}

func NewProgressPublisher(pub Publisher) *ProgressPublisher {
	return &ProgressPublisher{pub: pub, now: time.Now}
}

func (p *ProgressPublisher) OnBatch(ctx context.Context, progress upload.Progress) {
	p.publish(ctx, config.TopicIngestProgress, ProgressEvent{
		RunID:      logger.RunID(ctx),
		BatchIndex: progress.BatchIndex,
		BatchSize:  progress.BatchSize,
		Uploaded:   progress.Uploaded,
		Timestamp:  p.now(),
	})
}

func (p *ProgressPublisher) StartRun(ctx context.Context, total int) error {
	return nil
}

func (p *ProgressPublisher) SaveFailedBatch(ctx context.Context, failed *upload.RemoteWriteError) error {
	return nil
}

func (p *ProgressPublisher) FinishRun(ctx context.Context, summary upload.Summary) error {
	ev := RunEvent{
		RunID:      logger.RunID(ctx),
		Status:     summary.Status(),
		Total:      summary.Total,
		Uploaded:   summary.Uploaded,
		Duplicates: summary.Duplicates,
		Batches:    summary.Batches,
		Timestamp:  p.now(),
	}
	if summary.Err != nil {
		ev.Error = summary.Err.Error()
	}
	p.publish(ctx, config.TopicIngestCompleted, ev)
	return nil
}

func (p *ProgressPublisher) publish(ctx context.Context, topic string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := p.pub.Publish(topic, body); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}
