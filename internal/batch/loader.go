// Package batch coalesces duplicate store lookups made while serving one
// logical request. A Loader is created per request and dropped afterwards;
// concurrent identical reads share one store call and repeated reads are
// answered from memory. Any write through the Loader clears what it remembers.
package batch

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/benvon/tagtube/internal/library"
	"github.com/benvon/tagtube/internal/models"
)

var (
	_ library.TagStore   = (*Loader)(nil)
	_ library.VideoStore = (*Loader)(nil)
)

// Loader sits in front of the tag and video stores for one request
type Loader struct {
	tags   library.TagStore
	videos library.VideoStore

	group singleflight.Group

	mu     sync.Mutex
	epoch  uint64 // bumped by every write
	pages  map[string]models.Page[string]
	videoM map[string]*models.Video // nil value: known to be missing
}

// New creates a loader over the given stores
func New(tags library.TagStore, videos library.VideoStore) *Loader {
	l := &Loader{tags: tags, videos: videos}
	l.reset()
	return l
}

func (l *Loader) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	l.pages = make(map[string]models.Page[string])
	l.videoM = make(map[string]*models.Video)
}

func (l *Loader) TagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error) {
	return l.page(ctx, key("tags_of_videos", userID, skip, limit, videoIDs...), func() (models.Page[string], error) {
		return l.tags.TagsOfVideos(ctx, userID, videoIDs, skip, limit)
	})
}

func (l *Loader) TagsOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error) {
	return l.page(ctx, key("tags_of_user", userID, skip, limit), func() (models.Page[string], error) {
		return l.tags.TagsOfUser(ctx, userID, skip, limit)
	})
}

func (l *Loader) TagsContaining(ctx context.Context, userID, substring string, skip, limit int) (models.Page[string], error) {
	return l.page(ctx, key("tags_containing", userID, skip, limit, substring), func() (models.Page[string], error) {
		return l.tags.TagsContaining(ctx, userID, substring, skip, limit)
	})
}

func (l *Loader) VideoIDsWithAllTags(ctx context.Context, userID string, tags []string, skip, limit int) (models.Page[string], error) {
	return l.page(ctx, key("video_ids_with_all_tags", userID, skip, limit, tags...), func() (models.Page[string], error) {
		return l.tags.VideoIDsWithAllTags(ctx, userID, tags, skip, limit)
	})
}

func (l *Loader) TaggedVideosOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error) {
	return l.page(ctx, key("tagged_videos_of_user", userID, skip, limit), func() (models.Page[string], error) {
		return l.tags.TaggedVideosOfUser(ctx, userID, skip, limit)
	})
}

func (l *Loader) AddAssociations(ctx context.Context, userID string, videoIDs, tags []string) error {
	defer l.reset()
	return l.tags.AddAssociations(ctx, userID, videoIDs, tags)
}

func (l *Loader) RemoveAssociations(ctx context.Context, userID string, videoIDs, tags []string) (int64, error) {
	defer l.reset()
	return l.tags.RemoveAssociations(ctx, userID, videoIDs, tags)
}

func (l *Loader) RemoveAllAssociations(ctx context.Context, userID string, videoIDs []string) (int64, error) {
	defer l.reset()
	return l.tags.RemoveAllAssociations(ctx, userID, videoIDs)
}

// EnsureVideos may create records, so it forgets every remembered video
func (l *Loader) EnsureVideos(ctx context.Context, videoIDs []string) ([]string, error) {
	defer l.reset()
	return l.videos.EnsureVideos(ctx, videoIDs)
}

// GetByIDs loads only the ids not seen earlier in the request and returns
// records in input order, skipping duplicates and missing ids.
func (l *Loader) GetByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	l.mu.Lock()
	epoch := l.epoch
	var missing []string
	queued := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := l.videoM[id]; ok {
			continue
		}
		if _, ok := queued[id]; ok {
			continue
		}
		queued[id] = struct{}{}
		missing = append(missing, id)
	}
	l.mu.Unlock()

	var fetched []models.Video
	if len(missing) > 0 {
		v, err, _ := l.group.Do(key("videos", strconv.FormatUint(epoch, 10), 0, 0, missing...), func() (any, error) {
			found, err := l.videos.GetByIDs(ctx, missing)
			if err != nil {
				return nil, err
			}
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.epoch != epoch {
				return found, nil
			}
			for _, id := range missing {
				l.videoM[id] = nil
			}
			for i := range found {
				v := found[i]
				l.videoM[v.ID] = &v
			}
			return found, nil
		})
		if err != nil {
			return nil, err
		}
		fetched = v.([]models.Video)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	byID := make(map[string]models.Video, len(fetched))
	for _, v := range fetched {
		byID[v.ID] = v
	}
	out := make([]models.Video, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if v, ok := byID[id]; ok {
			out = append(out, v)
		} else if v := l.videoM[id]; v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (l *Loader) page(ctx context.Context, k string, load func() (models.Page[string], error)) (models.Page[string], error) {
	l.mu.Lock()
	if p, ok := l.pages[k]; ok {
		l.mu.Unlock()
		return clonePage(p), nil
	}
	epoch := l.epoch
	l.mu.Unlock()

	v, err, _ := l.group.Do(strconv.FormatUint(epoch, 10)+"/"+k, func() (any, error) {
		p, err := load()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		if l.epoch == epoch {
			l.pages[k] = p
		}
		l.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return models.Page[string]{}, err
	}
	return clonePage(v.(models.Page[string])), nil
}

// clonePage keeps callers from mutating the remembered slice
func clonePage(p models.Page[string]) models.Page[string] {
	return models.Page[string]{Data: append([]string{}, p.Data...), Count: p.Count}
}

func key(op, userID string, skip, limit int, parts ...string) string {
	var b strings.Builder
	for _, s := range append([]string{op, userID, strconv.Itoa(skip), strconv.Itoa(limit)}, parts...) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}
