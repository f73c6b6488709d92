package worker

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringline/backend/pkg/queue"
	"github.com/ringline/backend/pkg/storage"
)

func setup(t *testing.T) (*storage.Disk, *queue.Queue, *CleanupProcessor) {
	t.Helper()
	mr := miniredis.RunT(t)
	q := queue.NewQueue(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	media, err := storage.NewDisk(t.TempDir(), nil)
	require.NoError(t, err)
	return media, q, NewCleanupProcessor(media, q, nil)
}

func TestCleanupProcessorRemovesObject(t *testing.T) {
	media, q, p := setup(t)
	ctx := context.Background()
	require.NoError(t, media.Put(ctx, "a_call.mp4", strings.NewReader("x"), 1, ""))
	require.NoError(t, q.EnqueueMediaCleanup(ctx, queue.MediaCleanupPayload{Key: "a_call.mp4", Reason: "delete"}))

	job, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, p.Process(ctx, job))

	_, _, err = media.Open(ctx, "a_call.mp4")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// already gone is fine
	require.NoError(t, p.Process(ctx, job))
}

func TestCleanupProcessorRejectsBadJobs(t *testing.T) {
	_, _, p := setup(t)
	ctx := context.Background()

	err := p.Process(ctx, &queue.Job{Type: "other"})
	assert.ErrorContains(t, err, "unknown job type")

	err = p.Process(ctx, &queue.Job{Type: queue.JobTypeMediaCleanup, Payload: json.RawMessage(`[`)})
	assert.Error(t, err)

	payload, _ := json.Marshal(queue.MediaCleanupPayload{Key: "../etc/passwd"})
	err = p.Process(ctx, &queue.Job{Type: queue.JobTypeMediaCleanup, Payload: payload})
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}

func TestCleanupProcessorRunStopsOnCancel(t *testing.T) {
	_, _, p := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
