package workers

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	logpkg "github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/queue"
)

// ErrDeliveriesClosed is returned by Run when the delivery channel closes
// while the context is still live.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Run feeds deliveries from msgs to w until ctx is cancelled or msgs closes.
// Every delivery is processed in its own goroutine, at most concurrency at a
// time, so a job held until its NotBefore does not delay the deliveries queued
// behind it. Run returns once every started job has settled.
func Run[M queue.MessageInterface](ctx context.Context, w *CleanupWorker, msgs <-chan M, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	slots := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				if err := msg.Nack(true); err != nil {
					w.logger.Warn("failed_to_requeue_job", zap.String("error", logpkg.SanitizeError(err)))
				}
				return nil
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				if err := w.ProcessJob(ctx, msg); err != nil {
					job := msg.GetJob()
					w.logger.Error("failed_to_process_job",
						zap.String("job_id", job.ID.String()),
						zap.String("job_type", logpkg.SanitizeString(string(job.Type), 64)),
						zap.String("error", logpkg.SanitizeError(err)),
					)
				}
			}()
		}
	}
}
