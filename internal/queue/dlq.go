package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DLQCollector periodically drops dead-lettered jobs older than retention
type DLQCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewDLQCollector creates a DLQ collector. A nil purger makes every run a no-op.
func NewDLQCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *DLQCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DLQCollector{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start runs the collector until ctx is cancelled
func (c *DLQCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.collect(ctx); err != nil {
				c.logger.Error("dlq_purge_failed", zap.Error(err))
			}
		}
	}
}

func (c *DLQCollector) collect(ctx context.Context) error {
	if c.purger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	n, err := c.purger.PurgeOlderThan(ctx, c.retention)
	if err != nil {
		return fmt.Errorf("failed to purge DLQ: %w", err)
	}
	if n > 0 {
		c.logger.Info("dlq_purged",
			zap.Int("purged", n),
			zap.Duration("retention", c.retention),
		)
	}
	return nil
}
