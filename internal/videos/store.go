// Package videos keeps the shared video metadata records. Records are created
// lazily from an external provider the first time an id is seen.
package videos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benvon/tagtube/internal/database"
	"github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/models"
	"github.com/benvon/tagtube/internal/validation"
	"github.com/benvon/tagtube/internal/youtube"
)

const (
	defaultLookupTimeout = 5 * time.Second
	defaultConcurrency   = 4
)

// Options tune metadata fetching
type Options struct {
	// LookupTimeout bounds each provider call; a timeout counts as a failure
	LookupTimeout time.Duration
	// Concurrency caps parallel provider calls within one EnsureVideos
	Concurrency int
}

// Store is the video metadata store
type Store struct {
	repo     database.VideoRepositoryInterface
	provider youtube.Provider
	opts     Options
	logger   *zap.Logger
}

// NewStore creates a video metadata store
func NewStore(repo database.VideoRepositoryInterface, provider youtube.Provider, opts Options, log *zap.Logger) *Store {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaultLookupTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{repo: repo, provider: provider, opts: opts, logger: log}
}

// EnsureVideos makes sure a record exists for every id. Missing ids are
// fetched from the provider; ids whose fetch fails are skipped and returned in
// input order. Existing records are never refreshed. A storage error fails the
// whole call.
func (s *Store) EnsureVideos(ctx context.Context, videoIDs []string) ([]string, error) {
	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	if len(videoIDs) == 0 {
		return []string{}, nil
	}

	existing, err := s.repo.ExistingIDs(ctx, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing videos: %w", err)
	}

	var missing []string
	for _, id := range videoIDs {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return []string{}, nil
	}

	fetched := make([]*models.Video, len(missing))
	var mu sync.Mutex
	failedSet := make(map[string]struct{})

	// Fetch failures are recorded, never returned, so the group only bounds
	// concurrency.
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for i, id := range missing {
		g.Go(func() error {
			video, err := s.lookup(ctx, id)
			if err != nil {
				s.logger.Warn("video_metadata_fetch_failed",
					zap.String("video_id", logger.SanitizeVideoID(id)),
					zap.String("error", logger.SanitizeError(err)),
				)
				mu.Lock()
				failedSet[id] = struct{}{}
				mu.Unlock()
				return nil
			}
			fetched[i] = video
			return nil
		})
	}
	_ = g.Wait()

	toInsert := make([]models.Video, 0, len(missing))
	for _, v := range fetched {
		if v != nil {
			toInsert = append(toInsert, *v)
		}
	}

	if len(toInsert) > 0 {
		inserted, err := s.repo.Insert(ctx, toInsert)
		if err != nil {
			return nil, fmt.Errorf("failed to store video metadata: %w", err)
		}
		s.logger.Debug("videos_ensured",
			zap.Int("requested", len(videoIDs)),
			zap.Int("fetched", len(toInsert)),
			zap.Int64("inserted", inserted),
		)
	}

	failed := []string{}
	for _, id := range missing {
		if _, ok := failedSet[id]; ok {
			failed = append(failed, id)
		}
	}
	return failed, nil
}

func (s *Store) lookup(ctx context.Context, id string) (*models.Video, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()

	video, err := s.provider.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil || video.Title == "" {
		return nil, fmt.Errorf("video %s: %w", id, youtube.ErrMissingTitle)
	}
	// The stored id is always the requested one
	v := *video
	v.ID = id
	return &v, nil
}

// GetByID returns the record for id, or nil when there is none
func (s *Store) GetByID(ctx context.Context, id string) (*models.Video, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIDs returns records in id order, omitting ids without a record
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	return s.repo.GetByIDs(ctx, ids)
}

// DeleteMany removes the records for ids. Unknown ids are ignored.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	return s.repo.DeleteMany(ctx, ids)
}
