// Package library answers a user's cross-entity questions (which videos carry
// these tags, which tags do these videos carry) and applies tag edits. Counting
// and filtering live in the tag store; this layer hydrates ids into video
// records and hands removed video ids to cascade cleanup.
package library

import (
	"context"

	"github.com/benvon/tagtube/internal/models"
	"github.com/benvon/tagtube/internal/validation"
)

// ErrInvalidPagination is returned for a negative skip or a non-positive limit
var ErrInvalidPagination = validation.ErrInvalidPagination

// ErrTagTooLong is returned when a tag to add exceeds validation.MaxTagLength
var ErrTagTooLong = validation.ErrTagTooLong

// AddResult reports which videos received the tags. Failed lists ids whose
// metadata could not be fetched; no association was stored for them.
type AddResult struct {
	Added  []string `json:"added"`
	Failed []string `json:"failed"`
}

// RemoveResult reports a removal. Touched is every video id the removal
// addressed, which is what cascade cleanup inspects.
type RemoveResult struct {
	Touched []string `json:"touched"`
	Removed int64    `json:"removed"`
}

// Library is the surface the API layer calls
type Library interface {
	GetVideosOfUser(ctx context.Context, userID string, skip, limit int, tagFilter []string) (models.Page[models.Video], error)
	GetTagsOfUser(ctx context.Context, userID string, skip, limit int, contains string) (models.Page[string], error)
	GetTagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error)
	AddTagsToVideos(ctx context.Context, userID string, videoIDs, tags []string) (AddResult, error)
	RemoveTagsFromVideos(ctx context.Context, userID string, videoIDs, tags []string) (RemoveResult, error)
	RemoveVideos(ctx context.Context, userID string, videoIDs []string) (RemoveResult, error)
}

// TagStore is the part of the tag association store the coordinator reads and writes
type TagStore interface {
	AddAssociations(ctx context.Context, userID string, videoIDs, tags []string) error
	RemoveAssociations(ctx context.Context, userID string, videoIDs, tags []string) (int64, error)
	RemoveAllAssociations(ctx context.Context, userID string, videoIDs []string) (int64, error)
	TagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error)
	TagsOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error)
	TagsContaining(ctx context.Context, userID, substring string, skip, limit int) (models.Page[string], error)
	VideoIDsWithAllTags(ctx context.Context, userID string, tags []string, skip, limit int) (models.Page[string], error)
	TaggedVideosOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error)
}

// VideoStore is the part of the video metadata store the coordinator uses
type VideoStore interface {
	EnsureVideos(ctx context.Context, videoIDs []string) ([]string, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Video, error)
}

// CleanupNotifier receives the video ids touched by a committed removal.
// Delivery is at-least-once; receivers must tolerate repeats.
type CleanupNotifier interface {
	NotifyTouched(ctx context.Context, userID string, videoIDs []string) error
}
