package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/tagtube/internal/models"
	"github.com/benvon/tagtube/internal/validation"
	"go.uber.org/zap"
)

// TagAssociationRepository handles the (user, video, tag) association rows.
// Every user-scoped query filters on user_id; videos are shared across users
// and associations are the only per-user boundary.
type TagAssociationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTagAssociationRepository creates a new tag association repository
func NewTagAssociationRepository(db *DB) *TagAssociationRepository {
	return &TagAssociationRepository{db: db, logger: zap.NewNop()}
}

// SetLogger sets the logger used for write diagnostics
func (r *TagAssociationRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// AddAssociations inserts the cross product of videoIDs and tags for a user.
// Existing rows are left alone, so repeating a call is a no-op. All batches
// commit together or not at all.
func (r *TagAssociationRepository) AddAssociations(ctx context.Context, userID string, videoIDs, tags []string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	tags = validation.NormalizeTags(tags)
	if err := validation.ValidateTags(tags); err != nil {
		return err
	}
	if len(videoIDs) == 0 || len(tags) == 0 {
		return nil
	}

	rows := make([]models.TagAssociation, 0, len(videoIDs)*len(tags))
	for _, videoID := range videoIDs {
		for _, tag := range tags {
			rows = append(rows, models.TagAssociation{UserID: userID, VideoID: videoID, Tag: tag})
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inserted int64
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))

		var a args
		values := make([]string, 0, end-start)
		for _, row := range rows[start:end] {
			values = append(values, fmt.Sprintf("(%s, %s, %s)", a.add(row.UserID), a.add(row.VideoID), a.add(row.Tag)))
		}
		query := `INSERT INTO tag_associations (user_id, video_id, tag) VALUES ` +
			strings.Join(values, ", ") +
			` ON CONFLICT (user_id, video_id, tag) DO NOTHING`

		result, err := tx.ExecContext(ctx, query, a.values...)
		if err != nil {
			return fmt.Errorf("failed to insert tag associations: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag associations: %w", err)
	}

	r.logger.Debug("tag_associations_added",
		zap.Int("requested", len(rows)),
		zap.Int64("inserted", inserted),
	)
	return nil
}

// RemoveAssociations deletes the given tags from the given videos for a user.
// Rows that do not exist are ignored; zero rows deleted is not an error.
func (r *TagAssociationRepository) RemoveAssociations(ctx context.Context, userID string, videoIDs, tags []string) (int64, error) {
	tags = validation.NormalizeTags(tags)
	if len(tags) == 0 {
		return 0, nil
	}
	return r.deleteForVideos(ctx, userID, videoIDs, func(a *args) string {
		return ` AND ` + r.db.inSet(a, "tag", tags)
	})
}

// RemoveAllAssociations deletes every tag a user attached to the given videos
func (r *TagAssociationRepository) RemoveAllAssociations(ctx context.Context, userID string, videoIDs []string) (int64, error) {
	return r.deleteForVideos(ctx, userID, videoIDs, nil)
}

func (r *TagAssociationRepository) deleteForVideos(ctx context.Context, userID string, videoIDs []string, extra func(*args) string) (int64, error) {
	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	if userID == "" || len(videoIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted int64
	for _, ids := range chunk(videoIDs, insertBatchSize) {
		var a args
		query := `DELETE FROM tag_associations WHERE user_id = ` + a.add(userID) +
			` AND video_id IN (` + a.list(ids) + `)`
		if extra != nil {
			query += extra(&a)
		}

		result, err := tx.ExecContext(ctx, query, a.values...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete tag associations: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tag association delete: %w", err)
	}

	r.logger.Debug("tag_associations_removed",
		zap.Int("videos", len(videoIDs)),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

// TagsOfVideos returns the distinct tags a user attached to any of the given
// videos, sorted by tag.
func (r *TagAssociationRepository) TagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error) {
	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	if len(videoIDs) == 0 {
		return r.emptyPage(skip, limit)
	}

	q := &pagedQuery{}
	q.base = `SELECT DISTINCT tag AS value FROM tag_associations WHERE user_id = ` + q.args.add(userID) +
		` AND ` + r.db.inSet(&q.args, "video_id", videoIDs)
	return r.page(ctx, q, skip, limit)
}

// TagsOfUser returns every distinct tag the user has used, sorted by tag
func (r *TagAssociationRepository) TagsOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error) {
	q := &pagedQuery{}
	q.base = `SELECT DISTINCT tag AS value FROM tag_associations WHERE user_id = ` + q.args.add(userID)
	return r.page(ctx, q, skip, limit)
}

// TagsContaining returns the user's distinct tags containing substring
// anywhere, case-insensitively, sorted by tag.
func (r *TagAssociationRepository) TagsContaining(ctx context.Context, userID, substring string, skip, limit int) (models.Page[string], error) {
	substring = validation.NormalizeTag(substring)
	if substring == "" {
		return r.TagsOfUser(ctx, userID, skip, limit)
	}

	q := &pagedQuery{}
	q.base = `SELECT DISTINCT tag AS value FROM tag_associations WHERE user_id = ` + q.args.add(userID) +
		` AND LOWER(tag) LIKE ` + q.args.add("%"+escapeLike(substring)+"%") + ` ESCAPE '\'`
	return r.page(ctx, q, skip, limit)
}

// VideoIDsWithAllTags returns the videos the user tagged with every one of
// tags, sorted by video id. A video qualifies when the number of distinct
// requested tags it carries equals the number of distinct requested tags.
// With no tags it returns every video the user has tagged.
func (r *TagAssociationRepository) VideoIDsWithAllTags(ctx context.Context, userID string, tags []string, skip, limit int) (models.Page[string], error) {
	tags = validation.NormalizeTags(tags)
	if len(tags) == 0 {
		return r.TaggedVideosOfUser(ctx, userID, skip, limit)
	}

	q := &pagedQuery{}
	q.base = `SELECT video_id AS value FROM tag_associations WHERE user_id = ` + q.args.add(userID) +
		` AND ` + r.db.inSet(&q.args, "tag", tags) +
		` GROUP BY video_id HAVING COUNT(DISTINCT tag) = ` + q.args.add(len(tags))
	return r.page(ctx, q, skip, limit)
}

// TaggedVideosOfUser returns every distinct video the user has tagged, sorted by video id
func (r *TagAssociationRepository) TaggedVideosOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error) {
	q := &pagedQuery{}
	q.base = `SELECT DISTINCT video_id AS value FROM tag_associations WHERE user_id = ` + q.args.add(userID)
	return r.page(ctx, q, skip, limit)
}

// VideosNotReferencedAnywhere returns the subset of videoIDs that no user
// has any association with. This check is global, not user-scoped. An empty
// input returns an empty result without touching the database.
func (r *TagAssociationRepository) VideosNotReferencedAnywhere(ctx context.Context, videoIDs []string) ([]string, error) {
	videoIDs = validation.NormalizeVideoIDs(videoIDs)
	if len(videoIDs) == 0 {
		return []string{}, nil
	}

	referenced := make(map[string]struct{}, len(videoIDs))
	for _, ids := range chunk(videoIDs, insertBatchSize) {
		var a args
		query := `SELECT DISTINCT video_id FROM tag_associations WHERE video_id IN (` + a.list(ids) + `)`
		found, err := scanStrings(r.db.QueryContext(ctx, query, a.values...))
		if err != nil {
			return nil, fmt.Errorf("failed to find referenced videos: %w", err)
		}
		for _, id := range found {
			referenced[id] = struct{}{}
		}
	}

	orphaned := []string{}
	for _, id := range videoIDs {
		if _, ok := referenced[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	return orphaned, nil
}

func (r *TagAssociationRepository) page(ctx context.Context, q *pagedQuery, skip, limit int) (models.Page[string], error) {
	limit, err := validation.ValidatePage(skip, limit)
	if err != nil {
		return models.Page[string]{}, err
	}
	return r.db.runPaged(ctx, q, skip, limit)
}

func (r *TagAssociationRepository) emptyPage(skip, limit int) (models.Page[string], error) {
	if _, err := validation.ValidatePage(skip, limit); err != nil {
		return models.Page[string]{}, err
	}
	return models.EmptyPage[string](0), nil
}
