package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ringline/backend/pkg/queue"
	"github.com/ringline/backend/pkg/storage"
)

// CleanupProcessor processes media cleanup jobs: remove the named object from the Media Store.
type CleanupProcessor struct {
	media  storage.Store
	queue  *queue.Queue
	logger *zap.Logger
}

// NewCleanupProcessor creates a media cleanup processor.
func NewCleanupProcessor(media storage.Store, q *queue.Queue, logger *zap.Logger) *CleanupProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupProcessor{media: media, queue: q, logger: logger}
}

// Process executes one media cleanup job.
func (p *CleanupProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMediaCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MediaCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.media.Remove(ctx, payload.Key); err != nil {
		return fmt.Errorf("remove %s: %w", payload.Key, err)
	}
	p.logger.Info("media cleanup completed", zap.String("key", payload.Key), zap.String("reason", payload.Reason))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CleanupProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("media cleanup worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, queue.RetryBackoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
