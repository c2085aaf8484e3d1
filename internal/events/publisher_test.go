package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docindex/internal/config"
	"docindex/internal/logger"
	"docindex/internal/upload"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPublisher(pub Publisher) *ProgressPublisher {
	p := NewProgressPublisher(pub)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestProgressPublisher_OnBatch(t *testing.T) {
	pub := new(MockPublisher)
	var body []byte
	pub.On("Publish", config.TopicIngestProgress, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).([]byte)
	}).Return(nil).Once()

	ctx := logger.WithRunID(context.Background(), "run-1")
	newTestPublisher(pub).OnBatch(ctx, upload.Progress{BatchIndex: 2, BatchSize: 20, Uploaded: 120})

	pub.AssertExpectations(t)
	var ev ProgressEvent
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, ProgressEvent{RunID: "run-1", BatchIndex: 2, BatchSize: 20, Uploaded: 120, Timestamp: fixedNow}, ev)
}

func TestProgressPublisher_FinishRun(t *testing.T) {
	t.Run("Completed", func(t *testing.T) {
		pub := new(MockPublisher)
		var body []byte
		pub.On("Publish", config.TopicIngestCompleted, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).([]byte)
		}).Return(nil).Once()

		ctx := logger.WithRunID(context.Background(), "run-1")
		err := newTestPublisher(pub).FinishRun(ctx, upload.Summary{Total: 120, Uploaded: 120, Batches: 3})
		require.NoError(t, err)

		var ev RunEvent
		require.NoError(t, json.Unmarshal(body, &ev))
		assert.Equal(t, "completed", ev.Status)
		assert.Equal(t, 120, ev.Uploaded)
		assert.Empty(t, ev.Error)
	})

	t.Run("Failed", func(t *testing.T) {
		pub := new(MockPublisher)
		var body []byte
		pub.On("Publish", config.TopicIngestCompleted, mock.Anything).Run(func(args mock.Arguments) {
			body = args.Get(1).([]byte)
		}).Return(nil).Once()

		summary := upload.Summary{Total: 50, Uploaded: 20, Err: errors.New("upsert rejected")}
		require.NoError(t, newTestPublisher(pub).FinishRun(context.Background(), summary))

		var ev RunEvent
		require.NoError(t, json.Unmarshal(body, &ev))
		assert.Equal(t, "failed", ev.Status)
		assert.Equal(t, "unknown", ev.RunID)
		assert.Equal(t, "upsert rejected", ev.Error)
	})
}

func TestProgressPublisher_PublishErrorIsNotFatal(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nsqd unreachable"))

	p := newTestPublisher(pub)
	assert.NotPanics(t, func() {
		p.OnBatch(context.Background(), upload.Progress{BatchSize: 1, Uploaded: 1})
	})
	assert.NoError(t, p.FinishRun(context.Background(), upload.Summary{Total: 1, Uploaded: 1}))
	pub.AssertNumberOfCalls(t, "Publish", 2)
}
