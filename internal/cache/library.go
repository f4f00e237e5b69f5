package cache

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/library"
	"github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/models"
	"github.com/benvon/tagtube/internal/validation"
)

const DefaultTTL = 30 * time.Second

// Library caches the read operations of another Library. Writes pass through
// and then bump the user's generation. Backend failures are logged and the
// call falls through to the wrapped library.
type Library struct {
	next    library.Library
	backend Backend
	ttl     time.Duration
	logger  *zap.Logger
}

var _ library.Library = (*Library)(nil)

// NewLibrary wraps next with a read cache
func NewLibrary(next library.Library, backend Backend, ttl time.Duration, log *zap.Logger) *Library {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{next: next, backend: backend, ttl: ttl, logger: log}
}

func (l *Library) GetVideosOfUser(ctx context.Context, userID string, skip, limit int, tagFilter []string) (models.Page[models.Video], error) {
	return cached(ctx, l, "videos_of_user", userID, setArgs(skip, limit, validation.NormalizeTags(tagFilter)),
		func() (models.Page[models.Video], error) {
			return l.next.GetVideosOfUser(ctx, userID, skip, limit, tagFilter)
		})
}

func (l *Library) GetTagsOfUser(ctx context.Context, userID string, skip, limit int, contains string) (models.Page[string], error) {
	return cached(ctx, l, "tags_of_user", userID, []string{strconv.Itoa(skip), strconv.Itoa(limit), contains},
		func() (models.Page[string], error) {
			return l.next.GetTagsOfUser(ctx, userID, skip, limit, contains)
		})
}

func (l *Library) GetTagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error) {
	return cached(ctx, l, "tags_of_videos", userID, setArgs(skip, limit, validation.NormalizeVideoIDs(videoIDs)),
		func() (models.Page[string], error) {
			return l.next.GetTagsOfVideos(ctx, userID, videoIDs, skip, limit)
		})
}

func (l *Library) AddTagsToVideos(ctx context.Context, userID string, videoIDs, tags []string) (library.AddResult, error) {
	defer l.invalidate(ctx, userID)
	return l.next.AddTagsToVideos(ctx, userID, videoIDs, tags)
}

func (l *Library) RemoveTagsFromVideos(ctx context.Context, userID string, videoIDs, tags []string) (library.RemoveResult, error) {
	defer l.invalidate(ctx, userID)
	return l.next.RemoveTagsFromVideos(ctx, userID, videoIDs, tags)
}

func (l *Library) RemoveVideos(ctx context.Context, userID string, videoIDs []string) (library.RemoveResult, error) {
	defer l.invalidate(ctx, userID)
	return l.next.RemoveVideos(ctx, userID, videoIDs)
}

// invalidate runs even when the write failed, since a failed write may still
// have changed some rows.
func (l *Library) invalidate(ctx context.Context, userID string) {
	if err := l.backend.Bump(ctx, userID); err != nil {
		l.logger.Warn("failed_to_invalidate_cache",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)),
		)
	}
}

// cached is a method-shaped helper; Go methods cannot take type parameters
func cached[T any](ctx context.Context, l *Library, op, userID string, args []string, load func() (models.Page[T], error)) (models.Page[T], error) {
	gen, err := l.backend.Generation(ctx, userID)
	if err != nil {
		l.backendFailed(op, err)
		return load()
	}
	key := Key(op, userID, gen, args...)

	raw, ok, err := l.backend.Get(ctx, key)
	if err != nil {
		l.backendFailed(op, err)
	}
	if ok {
		var page models.Page[T]
		if err := json.Unmarshal(raw, &page); err == nil {
			return page, nil
		}
		l.logger.Warn("discarding_unreadable_cache_entry", zap.String("operation", op))
	}

	page, err := load()
	if err != nil {
		return page, err
	}
	raw, err = json.Marshal(page)
	if err != nil {
		return page, nil
	}
	if err := l.backend.Set(ctx, key, raw, l.ttl); err != nil {
		l.backendFailed(op, err)
	}
	return page, nil
}

func (l *Library) backendFailed(op string, err error) {
	l.logger.Warn("cache_backend_error",
		zap.String("operation", op),
		zap.String("error", logger.SanitizeError(err)),
	)
}

// setArgs orders set-valued arguments so equal sets share an entry
func setArgs(skip, limit int, values []string) []string {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return append([]string{strconv.Itoa(skip), strconv.Itoa(limit)}, sorted...)
}
