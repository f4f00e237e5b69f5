package database

import (
	"context"

	"github.com/benvon/tagtube/internal/models"
)

// TagAssociationRepositoryInterface defines the tag association store operations.
// This interface enables better testability by allowing mock implementations
type TagAssociationRepositoryInterface interface {
	AddAssociations(ctx context.Context, userID string, videoIDs, tags []string) error
	RemoveAssociations(ctx context.Context, userID string, videoIDs, tags []string) (int64, error)
	RemoveAllAssociations(ctx context.Context, userID string, videoIDs []string) (int64, error)
	TagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error)
	TagsOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error)
	TagsContaining(ctx context.Context, userID, substring string, skip, limit int) (models.Page[string], error)
	VideoIDsWithAllTags(ctx context.Context, userID string, tags []string, skip, limit int) (models.Page[string], error)
	TaggedVideosOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error)
	VideosNotReferencedAnywhere(ctx context.Context, videoIDs []string) ([]string, error)
}

// VideoRepositoryInterface defines the video row operations
type VideoRepositoryInterface interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	Insert(ctx context.Context, videos []models.Video) (int64, error)
	GetByID(ctx context.Context, id string) (*models.Video, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	UnreferencedIDs(ctx context.Context, after string, limit int) ([]string, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TagAssociationRepositoryInterface = (*TagAssociationRepository)(nil)
	_ VideoRepositoryInterface          = (*VideoRepository)(nil)
)
