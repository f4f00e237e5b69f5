package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/benvon/tagtube/internal/models"
	"github.com/benvon/tagtube/internal/validation"
)

const videoColumns = `id, title, author, author_url, thumbnail_url`

// VideoRepository handles video metadata rows
type VideoRepository struct {
	db *DB
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// ExistingIDs returns the subset of ids that already have a video row
func (r *VideoRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	ids = validation.NormalizeVideoIDs(ids)
	existing := make(map[string]struct{}, len(ids))
	for _, batch := range chunk(ids, insertBatchSize) {
		var a args
		query := `SELECT id FROM videos WHERE id IN (` + a.list(batch) + `)`
		found, err := scanStrings(r.db.QueryContext(ctx, query, a.values...))
		if err != nil {
			return nil, fmt.Errorf("failed to check existing videos: %w", err)
		}
		for _, id := range found {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

// Insert stores new video rows. Rows whose id already exists are left
// untouched, so concurrent first-time inserts of the same video are safe.
func (r *VideoRepository) Insert(ctx context.Context, videos []models.Video) (int64, error) {
	if len(videos) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inserted int64
	for start := 0; start < len(videos); start += insertBatchSize {
		end := min(start+insertBatchSize, len(videos))

		var a args
		values := make([]string, 0, end-start)
		for _, v := range videos[start:end] {
			values = append(values, fmt.Sprintf("(%s, %s, %s, %s, %s)",
				a.add(v.ID), a.add(v.Title), a.add(v.Author), a.add(v.AuthorURL), a.add(v.ThumbnailURL)))
		}
		query := `INSERT INTO videos (` + videoColumns + `) VALUES ` +
			strings.Join(values, ", ") +
			` ON CONFLICT (id) DO NOTHING`

		result, err := tx.ExecContext(ctx, query, a.values...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert videos: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit videos: %w", err)
	}
	return inserted, nil
}

// GetByID retrieves a video by ID. A missing video returns (nil, nil).
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	v := &models.Video{}
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID,
		&v.Title,
		&v.Author,
		&v.AuthorURL,
		&v.ThumbnailURL,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return v, nil
}

// GetByIDs retrieves videos in the order of ids. Ids without a row are
// omitted rather than padded.
func (r *VideoRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	ids = validation.NormalizeVideoIDs(ids)
	byID := make(map[string]models.Video, len(ids))

	for _, batch := range chunk(ids, insertBatchSize) {
		var a args
		query := `SELECT ` + videoColumns + ` FROM videos WHERE id IN (` + a.list(batch) + `)`
		rows, err := r.db.QueryContext(ctx, query, a.values...)
		if err != nil {
			return nil, fmt.Errorf("failed to query videos: %w", err)
		}

		for rows.Next() {
			var v models.Video
			if err := rows.Scan(&v.ID, &v.Title, &v.Author, &v.AuthorURL, &v.ThumbnailURL); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan video: %w", err)
			}
			byID[v.ID] = v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating videos: %w", err)
		}
	}

	videos := make([]models.Video, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// DeleteMany deletes the given videos. Ids without a row are ignored.
func (r *VideoRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	ids = validation.NormalizeVideoIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	for _, batch := range chunk(ids, insertBatchSize) {
		var a args
		query := `DELETE FROM videos WHERE id IN (` + a.list(batch) + `)`
		result, err := r.db.ExecContext(ctx, query, a.values...)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete videos: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

// UnreferencedIDs lists up to limit video ids, starting after the cursor id,
// that have no tag association from any user. Pass an empty cursor to start
// from the beginning.
func (r *VideoRepository) UnreferencedIDs(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	var a args
	query := `SELECT v.id FROM videos v WHERE ` + r.db.bytewise("v.id") + ` > ` + a.add(after) +
		` AND NOT EXISTS (SELECT 1 FROM tag_associations ta WHERE ta.video_id = v.id)` +
		` ORDER BY ` + r.db.bytewise("v.id") + ` LIMIT ` + a.add(limit)

	ids, err := scanStrings(r.db.QueryContext(ctx, query, a.values...))
	if err != nil {
		return nil, fmt.Errorf("failed to list unreferenced videos: %w", err)
	}
	return ids, nil
}
