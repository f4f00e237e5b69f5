package library

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/models"
	"github.com/benvon/tagtube/internal/validation"
)

const tracerName = "github.com/benvon/tagtube/internal/library"

// Coordinator implements Library over the tag and video stores
type Coordinator struct {
	tags     TagStore
	videos   VideoStore
	notifier CleanupNotifier
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewCoordinator creates a coordinator. A nil notifier disables cascade cleanup.
func NewCoordinator(tags TagStore, videos VideoStore, notifier CleanupNotifier, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		tags:     tags,
		videos:   videos,
		notifier: notifier,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

// GetVideosOfUser returns the user's videos carrying every tag in tagFilter,
// or every tagged video when the filter is empty. Count is the number of
// matching ids; ids without a metadata record are dropped from Data, so Count
// may exceed len(Data).
func (c *Coordinator) GetVideosOfUser(ctx context.Context, userID string, skip, limit int, tagFilter []string) (models.Page[models.Video], error) {
	ctx, span := c.start(ctx, "GetVideosOfUser", userID)
	defer span.End()

	limit, err := validation.ValidatePage(skip, limit)
	if err != nil {
		return models.Page[models.Video]{}, c.fail(span, "get_videos_of_user", userID, err)
	}

	tagFilter = validation.NormalizeTags(tagFilter)
	span.SetAttributes(attribute.Int("tagtube.tag_filter.size", len(tagFilter)))

	var ids models.Page[string]
	if len(tagFilter) == 0 {
		ids, err = c.tags.TaggedVideosOfUser(ctx, userID, skip, limit)
	} else {
		ids, err = c.tags.VideoIDsWithAllTags(ctx, userID, tagFilter, skip, limit)
	}
	if err != nil {
		return models.Page[models.Video]{}, c.fail(span, "get_videos_of_user", userID, err)
	}

	if len(ids.Data) == 0 {
		return models.EmptyPage[models.Video](ids.Count), nil
	}

	videos, err := c.videos.GetByIDs(ctx, ids.Data)
	if err != nil {
		return models.Page[models.Video]{}, c.fail(span, "get_videos_of_user", userID, err)
	}
	if dropped := len(ids.Data) - len(videos); dropped > 0 {
		c.logger.Warn("videos_missing_metadata",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.Int("dropped", dropped),
		)
	}

	span.SetAttributes(attribute.Int("tagtube.result.count", ids.Count))
	return models.Page[models.Video]{Data: videos, Count: ids.Count}, nil
}

// GetTagsOfUser returns the user's tags, restricted to those containing
// contains when it is not empty.
func (c *Coordinator) GetTagsOfUser(ctx context.Context, userID string, skip, limit int, contains string) (models.Page[string], error) {
	ctx, span := c.start(ctx, "GetTagsOfUser", userID)
	defer span.End()

	limit, err := validation.ValidatePage(skip, limit)
	if err != nil {
		return models.Page[string]{}, c.fail(span, "get_tags_of_user", userID, err)
	}

	var page models.Page[string]
	if contains = validation.NormalizeTag(contains); contains == "" {
		page, err = c.tags.TagsOfUser(ctx, userID, skip, limit)
	} else {
		page, err = c.tags.TagsContaining(ctx, userID, contains, skip, limit)
	}
	if err != nil {
		return models.Page[string]{}, c.fail(span, "get_tags_of_user", userID, err)
	}
	return page, nil
}

// GetTagsOfVideos returns the union of tags the user put on any of videoIDs
func (c *Coordinator) GetTagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error) {
	ctx, span := c.start(ctx, "GetTagsOfVideos", userID)
	defer span.End()

	limit, err := validation.ValidatePage(skip, limit)
	if err != nil {
		return models.Page[string]{}, c.fail(span, "get_tags_of_videos", userID, err)
	}

	page, err := c.tags.TagsOfVideos(ctx, userID, videoIDs, skip, limit)
	if err != nil {
		return models.Page[string]{}, c.fail(span, "get_tags_of_videos", userID, err)
	}
	return page, nil
}

// AddTagsToVideos ensures metadata for every video first and then stores the
// associations for the videos that have a record. Videos whose metadata could
// not be fetched are reported in Failed and left untagged.
func (c *Coordinator) AddTagsToVideos(ctx context.Context, userID string, videoIDs, tags []string) (AddResult, error) {
	ctx, span := c.start(ctx, "AddTagsToVideos", userID)
	defer span.End()

	if userID == "" {
		return AddResult{}, c.fail(span, "add_tags_to_videos", userID, fmt.Errorf("user id is required"))
	}

	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	tags = validation.NormalizeTags(tags)
	if err := validation.ValidateTags(tags); err != nil {
		return AddResult{}, c.fail(span, "add_tags_to_videos", userID, err)
	}
	result := AddResult{Added: []string{}, Failed: []string{}}
	if len(videoIDs) == 0 || len(tags) == 0 {
		return result, nil
	}

	failed, err := c.videos.EnsureVideos(ctx, videoIDs)
	if err != nil {
		return AddResult{}, c.fail(span, "add_tags_to_videos", userID, err)
	}
	result.Failed = failed
	result.Added = without(videoIDs, failed)
	if len(result.Added) == 0 {
		return result, nil
	}

	if err := c.tags.AddAssociations(ctx, userID, result.Added, tags); err != nil {
		return AddResult{}, c.fail(span, "add_tags_to_videos", userID, err)
	}

	// A sweep may have deleted a record between the ensure and the insert
	// when the video was orphaned by someone else. Restore it now that it
	// is referenced again.
	if missing, err := c.videos.EnsureVideos(ctx, result.Added); err != nil || len(missing) > 0 {
		c.logger.Warn("failed_to_restore_video_metadata",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.Strings("video_ids", logger.SanitizeVideoIDs(missing)),
			zap.String("error", logger.SanitizeError(err)),
		)
	}

	span.SetAttributes(
		attribute.Int("tagtube.videos.added", len(result.Added)),
		attribute.Int("tagtube.videos.failed", len(result.Failed)),
	)
	c.logger.Debug("tags_added_to_videos",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.Int("videos", len(result.Added)),
		zap.Int("tags", len(tags)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// RemoveTagsFromVideos deletes the given tags from the given videos and
// schedules cleanup for every touched video.
func (c *Coordinator) RemoveTagsFromVideos(ctx context.Context, userID string, videoIDs, tags []string) (RemoveResult, error) {
	ctx, span := c.start(ctx, "RemoveTagsFromVideos", userID)
	defer span.End()

	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	tags = validation.NormalizeTags(tags)
	if len(videoIDs) == 0 || len(tags) == 0 {
		return RemoveResult{Touched: []string{}}, nil
	}

	removed, err := c.tags.RemoveAssociations(ctx, userID, videoIDs, tags)
	if err != nil {
		return RemoveResult{}, c.fail(span, "remove_tags_from_videos", userID, err)
	}

	c.notify(ctx, userID, videoIDs)
	span.SetAttributes(attribute.Int64("tagtube.associations.removed", removed))
	return RemoveResult{Touched: videoIDs, Removed: removed}, nil
}

// RemoveVideos strips every tag the user put on the given videos and
// schedules cleanup for them.
func (c *Coordinator) RemoveVideos(ctx context.Context, userID string, videoIDs []string) (RemoveResult, error) {
	ctx, span := c.start(ctx, "RemoveVideos", userID)
	defer span.End()

	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	if len(videoIDs) == 0 {
		return RemoveResult{Touched: []string{}}, nil
	}

	removed, err := c.tags.RemoveAllAssociations(ctx, userID, videoIDs)
	if err != nil {
		return RemoveResult{}, c.fail(span, "remove_videos", userID, err)
	}

	c.notify(ctx, userID, videoIDs)
	span.SetAttributes(attribute.Int64("tagtube.associations.removed", removed))
	return RemoveResult{Touched: videoIDs, Removed: removed}, nil
}

// notify hands touched ids to cleanup. The removal already committed, so a
// failure here only delays orphan deletion.
func (c *Coordinator) notify(ctx context.Context, userID string, videoIDs []string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyTouched(ctx, userID, videoIDs); err != nil {
		c.logger.Error("failed_to_schedule_orphan_sweep",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.Strings("video_ids", logger.SanitizeVideoIDs(videoIDs)),
			zap.String("error", logger.SanitizeError(err)),
		)
	}
}

func (c *Coordinator) start(ctx context.Context, op, userID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "library."+op,
		trace.WithAttributes(attribute.String("tagtube.user_id", logger.SanitizeUserID(userID))),
	)
}

// fail records err on the span and logs storage failures. Rejected
// pagination is the caller's mistake and is not logged.
func (c *Coordinator) fail(span trace.Span, op, userID string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if !errors.Is(err, ErrInvalidPagination) && !errors.Is(err, ErrTagTooLong) {
		c.logger.Error("library_operation_failed",
			zap.String("operation", op),
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)),
		)
	}
	return err
}

// without returns ids minus drop, keeping order
func without(ids, drop []string) []string {
	if len(drop) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

var _ Library = (*Coordinator)(nil)
