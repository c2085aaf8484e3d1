package upload

import (
	"context"
	"iter"
	"log/slog"
)

// Sink performs the remote write of one batch. A batch either succeeds or
// fails as a whole.
type Sink interface {
	Upsert(ctx context.Context, batch []Record) error
}

// Progress is reported after every successful batch.
type Progress struct {
	BatchIndex int
	BatchSize  int
	Uploaded   int
}

type Observer interface {
	OnBatch(ctx context.Context, p Progress)
}

type ObserverFunc func(ctx context.Context, p Progress)

func (f ObserverFunc) OnBatch(ctx context.Context, p Progress) { f(ctx, p) }

type Driver struct {
	sink      Sink
	observers []Observer
}

type DriverOption func(*Driver)

func WithObserver(o Observer) DriverOption {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

func NewDriver(sink Sink, opts ...DriverOption) *Driver {
	d := &Driver{sink: sink}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run submits batches to the sink one at a time and returns how many records
// were uploaded. On the first failure it stops and returns the count reached
// before it together with the error; nothing is retried.
func (d *Driver) Run(ctx context.Context, batches iter.Seq2[[]Record, error]) (int, error) {
	uploaded := 0
	index := 0
	for batch, err := range batches {
		if err != nil {
			slog.ErrorContext(ctx, "batching failed", "error", err, "uploaded", uploaded)
			return uploaded, err
		}
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		if err := d.sink.Upsert(ctx, batch); err != nil {
			slog.ErrorContext(ctx, "batch upsert failed", "error", err, "batch", index, "batch_size", len(batch), "uploaded", uploaded)
			return uploaded, &RemoteWriteError{BatchIndex: index, IDs: ids(batch), Err: err}
		}

		uploaded += len(batch)
		p := Progress{BatchIndex: index, BatchSize: len(batch), Uploaded: uploaded}
		slog.InfoContext(ctx, "batch upserted", "batch", index, "batch_size", len(batch), "uploaded", uploaded)
		for _, o := range d.observers {
			o.OnBatch(ctx, p)
		}
		index++
	}
	return uploaded, nil
}

func ids(batch []Record) []string {
	out := make([]string, len(batch))
	for i, r := range batch {
		out[i] = r.ID
	}
	return out
}
