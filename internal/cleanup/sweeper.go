// Package cleanup deletes video records once no user references them. Tag
// removals report the video ids they touched; a sweep keeps the ones with no
// association left and deletes their records. Sweeps are idempotent, so
// repeated or late delivery is harmless.
package cleanup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/validation"
)

// OrphanFinder reports which of the given videos no user references
type OrphanFinder interface {
	VideosNotReferencedAnywhere(ctx context.Context, videoIDs []string) ([]string, error)
}

// VideoDeleter removes video records
type VideoDeleter interface {
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

// SweepResult describes one sweep
type SweepResult struct {
	Checked  int      `json:"checked"`
	Orphaned []string `json:"orphaned"`
	Deleted  int64    `json:"deleted"`
}

// Sweeper runs the orphan check and delete for a list of touched videos
type Sweeper struct {
	tags   OrphanFinder
	videos VideoDeleter
	logger *zap.Logger
}

// NewSweeper creates a sweeper
func NewSweeper(tags OrphanFinder, videos VideoDeleter, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{tags: tags, videos: videos, logger: log}
}

// Sweep deletes the records of every touched video that has no association
// from any user. When the delete fails the orphans stay until a later sweep
// touches them again or the periodic collector finds them.
func (s *Sweeper) Sweep(ctx context.Context, touched []string) (SweepResult, error) {
	touched = validation.NormalizeVideoIDs(touched)
	result := SweepResult{Checked: len(touched), Orphaned: []string{}}
	if len(touched) == 0 {
		return result, nil
	}

	orphaned, err := s.tags.VideosNotReferencedAnywhere(ctx, touched)
	if err != nil {
		return result, fmt.Errorf("failed to find orphaned videos: %w", err)
	}
	result.Orphaned = orphaned
	if len(orphaned) == 0 {
		return result, nil
	}

	deleted, err := s.videos.DeleteMany(ctx, orphaned)
	if err != nil {
		return result, fmt.Errorf("failed to delete orphaned videos: %w", err)
	}
	result.Deleted = deleted

	s.logger.Info("orphan_sweep_completed",
		zap.Int("checked", result.Checked),
		zap.Int("orphaned", len(orphaned)),
		zap.Int64("deleted", deleted),
		zap.Strings("video_ids", logger.SanitizeVideoIDs(orphaned)),
	)
	return result, nil
}
