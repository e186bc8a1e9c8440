package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trunov/imagegate/internal/config"
)

type recordingWarmer struct {
	events *[]string
	err    error
}

func (w *recordingWarmer) Derivative(_ context.Context, _, _ string, _, _ int) ([]byte, error) {
	*w.events = append(*w.events, "process")
	return nil, w.err
}

func prewarmMessage() redis.XMessage {
	return redis.XMessage{
		ID: "1-1",
		Values: map[string]interface{}{
			"payload": `{"owner_id":"u1","picture_id":"p1.jpg"}`,
			"attempt": 0,
		},
	}
}

func TestHandleAcksOnlyAfterProcessing(t *testing.T) {
	var events []string

	w := &Worker{
		cfg:    config.PrewarmWorkerConfig{MaxAttempts: 1, Tiers: []string{"1"}},
		warmer: &recordingWarmer{events: &events},
	}
	w.ack = func(_ context.Context, id string) {
		events = append(events, "ack "+id)
	}

	err := w.handle(context.Background(), prewarmMessage())
	require.NoError(t, err)
	assert.Equal(t, []string{"process", "ack 1-1"}, events)
}

func TestHandleAcksFailedJobAfterProcessing(t *testing.T) {
	var events []string

	// MaxAttempts of 1 means a failure is terminal: no requeue, but the
	// message must still be acknowledged, and only once handling is over.
	w := &Worker{
		cfg:    config.PrewarmWorkerConfig{MaxAttempts: 1, Tiers: []string{"1"}},
		warmer: &recordingWarmer{events: &events, err: errors.New("origin down")},
	}
	w.ack = func(_ context.Context, id string) {
		events = append(events, "ack "+id)
	}

	err := w.handle(context.Background(), prewarmMessage())
	require.Error(t, err)
	assert.Equal(t, []string{"process", "ack 1-1"}, events)
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	var events []string

	w := &Worker{
		cfg:    config.PrewarmWorkerConfig{MaxAttempts: 1},
		warmer: &recordingWarmer{events: &events},
	}
	w.ack = func(_ context.Context, id string) {
		events = append(events, "ack "+id)
	}

	err := w.handle(context.Background(), redis.XMessage{
		ID:     "2-1",
		Values: map[string]interface{}{"payload": "{not json"},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"ack 2-1"}, events, "a poison message is acked without processing")
}
