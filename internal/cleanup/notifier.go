package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/queue"
)

// QueueNotifier turns touched video ids into sweep jobs on the job queue
type QueueNotifier struct {
	queue queue.Enqueuer
	delay time.Duration
}

// NewQueueNotifier creates a notifier that enqueues sweep jobs due after delay
func NewQueueNotifier(q queue.Enqueuer, delay time.Duration) *QueueNotifier {
	return &QueueNotifier{queue: q, delay: delay}
}

// NotifyTouched enqueues one sweep job for videoIDs
func (n *QueueNotifier) NotifyTouched(ctx context.Context, userID string, videoIDs []string) error {
	if len(videoIDs) == 0 {
		return nil
	}
	job := queue.NewSweepJob(userID, videoIDs, n.delay)
	if err := n.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue sweep job: %w", err)
	}
	return nil
}

const defaultAsyncSweepTimeout = 30 * time.Second

// AsyncNotifier sweeps in a background goroutine of the current process.
// Use it when no job queue is configured.
type AsyncNotifier struct {
	sweeper *Sweeper
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewAsyncNotifier creates an in-process notifier
func NewAsyncNotifier(sweeper *Sweeper, timeout time.Duration, log *zap.Logger) *AsyncNotifier {
	if timeout <= 0 {
		timeout = defaultAsyncSweepTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AsyncNotifier{sweeper: sweeper, timeout: timeout, logger: log}
}

// NotifyTouched starts a sweep and returns immediately. The sweep outlives
// the caller's cancellation but keeps its values.
func (n *AsyncNotifier) NotifyTouched(ctx context.Context, userID string, videoIDs []string) error {
	if len(videoIDs) == 0 {
		return nil
	}
	ids := append([]string(nil), videoIDs...)
	sweepCtx := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(sweepCtx, n.timeout)
		defer cancel()

		if _, err := n.sweeper.Sweep(ctx, ids); err != nil {
			n.logger.Error("orphan_sweep_failed",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.Strings("video_ids", logger.SanitizeVideoIDs(ids)),
				zap.String("error", logger.SanitizeError(err)),
			)
		}
	}()
	return nil
}

// Wait blocks until every started sweep has finished
func (n *AsyncNotifier) Wait() {
	n.wg.Wait()
}
