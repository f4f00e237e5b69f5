package library

import (
	"context"
	"sync"
	"testing"

	"github.com/benvon/tagtube/internal/models"
)

// mockTagStore fails the test when an unconfigured method is called
type mockTagStore struct {
	t *testing.T

	addAssociationsFunc       func(ctx context.Context, userID string, videoIDs, tags []string) error
	removeAssociationsFunc    func(ctx context.Context, userID string, videoIDs, tags []string) (int64, error)
	removeAllAssociationsFunc func(ctx context.Context, userID string, videoIDs []string) (int64, error)
	tagsOfVideosFunc          func(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error)
	tagsOfUserFunc            func(ctx context.Context, userID string, skip, limit int) (models.Page[string], error)
	tagsContainingFunc        func(ctx context.Context, userID, substring string, skip, limit int) (models.Page[string], error)
	videoIDsWithAllTagsFunc   func(ctx context.Context, userID string, tags []string, skip, limit int) (models.Page[string], error)
	taggedVideosOfUserFunc    func(ctx context.Context, userID string, skip, limit int) (models.Page[string], error)
}

func (m *mockTagStore) AddAssociations(ctx context.Context, userID string, videoIDs, tags []string) error {
	if m.addAssociationsFunc == nil {
		m.t.Fatal("unexpected AddAssociations call")
	}
	return m.addAssociationsFunc(ctx, userID, videoIDs, tags)
}

func (m *mockTagStore) RemoveAssociations(ctx context.Context, userID string, videoIDs, tags []string) (int64, error) {
	if m.removeAssociationsFunc == nil {
		m.t.Fatal("unexpected RemoveAssociations call")
	}
	return m.removeAssociationsFunc(ctx, userID, videoIDs, tags)
}

func (m *mockTagStore) RemoveAllAssociations(ctx context.Context, userID string, videoIDs []string) (int64, error) {
	if m.removeAllAssociationsFunc == nil {
		m.t.Fatal("unexpected RemoveAllAssociations call")
	}
	return m.removeAllAssociationsFunc(ctx, userID, videoIDs)
}

func (m *mockTagStore) TagsOfVideos(ctx context.Context, userID string, videoIDs []string, skip, limit int) (models.Page[string], error) {
	if m.tagsOfVideosFunc == nil {
		m.t.Fatal("unexpected TagsOfVideos call")
	}
	return m.tagsOfVideosFunc(ctx, userID, videoIDs, skip, limit)
}

func (m *mockTagStore) TagsOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error) {
	if m.tagsOfUserFunc == nil {
		m.t.Fatal("unexpected TagsOfUser call")
	}
	return m.tagsOfUserFunc(ctx, userID, skip, limit)
}

func (m *mockTagStore) TagsContaining(ctx context.Context, userID, substring string, skip, limit int) (models.Page[string], error) {
	if m.tagsContainingFunc == nil {
		m.t.Fatal("unexpected TagsContaining call")
	}
	return m.tagsContainingFunc(ctx, userID, substring, skip, limit)
}

func (m *mockTagStore) VideoIDsWithAllTags(ctx context.Context, userID string, tags []string, skip, limit int) (models.Page[string], error) {
	if m.videoIDsWithAllTagsFunc == nil {
		m.t.Fatal("unexpected VideoIDsWithAllTags call")
	}
	return m.videoIDsWithAllTagsFunc(ctx, userID, tags, skip, limit)
}

func (m *mockTagStore) TaggedVideosOfUser(ctx context.Context, userID string, skip, limit int) (models.Page[string], error) {
	if m.taggedVideosOfUserFunc == nil {
		m.t.Fatal("unexpected TaggedVideosOfUser call")
	}
	return m.taggedVideosOfUserFunc(ctx, userID, skip, limit)
}

type mockVideoStore struct {
	t *testing.T

	ensureVideosFunc func(ctx context.Context, videoIDs []string) ([]string, error)
	getByIDsFunc     func(ctx context.Context, ids []string) ([]models.Video, error)
	ensureCalls      int
}

func (m *mockVideoStore) EnsureVideos(ctx context.Context, videoIDs []string) ([]string, error) {
	if m.ensureVideosFunc == nil {
		m.t.Fatal("unexpected EnsureVideos call")
	}
	m.ensureCalls++
	return m.ensureVideosFunc(ctx, videoIDs)
}

func (m *mockVideoStore) GetByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	if m.getByIDsFunc == nil {
		m.t.Fatal("unexpected GetByIDs call")
	}
	return m.getByIDsFunc(ctx, ids)
}

type mockNotifier struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (m *mockNotifier) NotifyTouched(ctx context.Context, userID string, videoIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, videoIDs)
	return m.err
}
