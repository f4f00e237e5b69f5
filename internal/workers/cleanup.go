// Package workers consumes cleanup jobs from the job queue.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/cleanup"
	logpkg "github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/queue"
)

// DefaultRetryBase is the first retry delay; later retries double it
const DefaultRetryBase = 10 * time.Second

// JobProcessor handles one job. A returned error triggers the retry policy.
type JobProcessor func(ctx context.Context, job *queue.Job) error

type processorEntry struct {
	proc  JobProcessor
	retry bool
}

// Sweeper runs an orphan sweep over touched videos
type Sweeper interface {
	Sweep(ctx context.Context, touched []string) (cleanup.SweepResult, error)
}

// Collector runs one full orphan collection
type Collector interface {
	Collect(ctx context.Context) (int64, error)
}

// CleanupWorker processes orphan sweep and orphan GC jobs
type CleanupWorker struct {
	sweeper   Sweeper
	collector Collector
	queue     queue.Enqueuer
	retryBase time.Duration
	logger    *zap.Logger
	registry  map[queue.JobType]processorEntry
}

// NewCleanupWorker creates a worker and registers the sweep and GC processors.
// Failed jobs are re-enqueued on q until they run out of retries.
func NewCleanupWorker(sweeper Sweeper, collector Collector, q queue.Enqueuer, retryBase time.Duration, logger *zap.Logger) *CleanupWorker {
	if retryBase <= 0 {
		retryBase = DefaultRetryBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &CleanupWorker{
		sweeper:   sweeper,
		collector: collector,
		queue:     q,
		retryBase: retryBase,
		logger:    logger,
		registry:  make(map[queue.JobType]processorEntry),
	}
	w.RegisterProcessor(queue.JobTypeOrphanSweep, w.ProcessSweepJob, true)
	w.RegisterProcessor(queue.JobTypeOrphanGC, w.ProcessGCJob, false)
	return w
}

// RegisterProcessor registers a processor for a job type
func (w *CleanupWorker) RegisterProcessor(typ queue.JobType, proc JobProcessor, retry bool) {
	w.registry[typ] = processorEntry{proc: proc, retry: retry}
}

// ProcessSweepJob sweeps the job's touched videos
func (w *CleanupWorker) ProcessSweepJob(ctx context.Context, job *queue.Job) error {
	result, err := w.sweeper.Sweep(ctx, job.VideoIDs)
	if err != nil {
		return err
	}
	w.logger.Debug("processed_sweep_job",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", logpkg.SanitizeUserID(job.UserID)),
		zap.Int("checked", result.Checked),
		zap.Int64("deleted", result.Deleted),
	)
	return nil
}

// ProcessGCJob runs a full collection. GC jobs are not retried; the next
// periodic run covers a failure.
func (w *CleanupWorker) ProcessGCJob(ctx context.Context, job *queue.Job) error {
	if w.collector == nil {
		return errors.New("orphan collector is not configured")
	}
	deleted, err := w.collector.Collect(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("processed_gc_job",
		zap.String("job_id", job.ID.String()),
		zap.Int64("deleted", deleted),
	)
	return nil
}

// ProcessJob runs the processor registered for the job's type and settles the
// message. A job that is not yet due is held until NotBefore; a job past
// NotAfter is dropped.
func (w *CleanupWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	jobID := job.ID.String()

	if job.IsExpired() {
		w.logger.Info("dropping_expired_job",
			zap.String("job_id", jobID),
			zap.String("job_type", string(job.Type)),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack expired job: %w", ackErr)
		}
		return nil
	}

	if err := w.waitUntilDue(ctx, job); err != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("failed_to_requeue_job",
				zap.String("job_id", jobID),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return err
	}

	ent, ok := w.registry[job.Type]
	if !ok {
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("failed_to_nack_unknown_job_type",
				zap.String("job_id", jobID),
				zap.String("job_type", logpkg.SanitizeString(string(job.Type), 64)),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("unknown job type: %s", logpkg.SanitizeString(string(job.Type), 64))
	}

	if err := ent.proc(ctx, job); err != nil {
		w.logger.Error("cleanup_job_failed",
			zap.String("job_id", jobID),
			zap.String("job_type", string(job.Type)),
			zap.Int("retry_count", job.RetryCount),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		if ent.retry {
			return w.handleJobError(ctx, msg, job, err)
		}
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_job",
				zap.String("job_id", jobID),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("%s job failed: %w", job.Type, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack %s job: %w", job.Type, ackErr)
	}
	return nil
}

// handleJobError re-enqueues a copy of job with back-off and acks the
// original. Once retries run out, or the re-enqueue fails, the message is
// dead-lettered instead.
func (w *CleanupWorker) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, jobErr error) error {
	jobID := job.ID.String()
	if !job.CanRetry() || w.queue == nil {
		w.logger.Warn("cleanup_job_dead_lettered",
			zap.String("job_id", jobID),
			zap.Int("retry_count", job.RetryCount),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_job",
				zap.String("job_id", jobID),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("%s job failed after %d retries: %w", job.Type, job.RetryCount, jobErr)
	}

	retry := *job
	retry.IncrementRetry()
	retry.Delay(retry.RetryBackoff(w.retryBase))

	if err := w.queue.Enqueue(ctx, &retry); err != nil {
		w.logger.Error("failed_to_reenqueue_job",
			zap.String("job_id", jobID),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_job",
				zap.String("job_id", jobID),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("failed to re-enqueue %s job: %w", job.Type, err)
	}

	w.logger.Info("cleanup_job_rescheduled",
		zap.String("job_id", jobID),
		zap.Int("retry_count", retry.RetryCount),
		zap.Time("not_before", *retry.NotBefore),
	)
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack rescheduled job: %w", ackErr)
	}
	return jobErr
}

func (w *CleanupWorker) waitUntilDue(ctx context.Context, job *queue.Job) error {
	if job.NotBefore == nil {
		return ctx.Err()
	}
	wait := time.Until(*job.NotBefore)
	if wait <= 0 {
		return ctx.Err()
	}
	w.logger.Debug("waiting_for_job_not_before",
		zap.String("job_id", job.ID.String()),
		zap.Time("not_before", *job.NotBefore),
	)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
