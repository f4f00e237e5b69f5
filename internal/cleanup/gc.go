package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultGCBatchSize = 200

// UnreferencedLister pages through video records that no association references
type UnreferencedLister interface {
	UnreferencedIDs(ctx context.Context, after string, limit int) ([]string, error)
}

// GarbageCollector periodically walks all video records and sweeps the ones
// left orphaned by a failed or lost sweep.
type GarbageCollector struct {
	lister    UnreferencedLister
	sweeper   *Sweeper
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewGarbageCollector creates a collector that runs every interval
func NewGarbageCollector(lister UnreferencedLister, sweeper *Sweeper, interval time.Duration, batchSize int, log *zap.Logger) *GarbageCollector {
	if batchSize <= 0 {
		batchSize = defaultGCBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GarbageCollector{
		lister:    lister,
		sweeper:   sweeper,
		interval:  interval,
		batchSize: batchSize,
		logger:    log,
	}
}

// Start runs the GC loop until ctx is cancelled
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := gc.Collect(ctx); err != nil {
				gc.logger.Error("orphan_gc_failed", zap.Error(err))
			}
		}
	}
}

// Collect walks every unreferenced record once and returns how many were
// deleted. Each batch is re-checked by the sweeper before deletion.
func (gc *GarbageCollector) Collect(ctx context.Context) (int64, error) {
	var (
		deleted int64
		after   string
		batches int
	)
	for {
		ids, err := gc.lister.UnreferencedIDs(ctx, after, gc.batchSize)
		if err != nil {
			return deleted, fmt.Errorf("failed to list unreferenced videos: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		batches++

		result, err := gc.sweeper.Sweep(ctx, ids)
		deleted += result.Deleted
		if err != nil {
			return deleted, err
		}

		if len(ids) < gc.batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	gc.logger.Info("orphan_gc_completed",
		zap.Int("batches", batches),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}
