package videos

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/tagtube/internal/models"
	"github.com/benvon/tagtube/internal/youtube"
)

type mockVideoRepo struct {
	mu              sync.Mutex
	rows            map[string]models.Video
	insertCalls     [][]models.Video
	existingErr     error
	insertErr       error
	unreferencedIDs []string
}

func newMockVideoRepo(ids ...string) *mockVideoRepo {
	m := &mockVideoRepo{rows: make(map[string]models.Video)}
	for _, id := range ids {
		m.rows[id] = models.Video{ID: id, Title: "existing " + id}
	}
	return m
}

func (m *mockVideoRepo) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	if m.existingErr != nil {
		return nil, m.existingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockVideoRepo) Insert(ctx context.Context, videos []models.Video) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls = append(m.insertCalls, videos)
	var n int64
	for _, v := range videos {
		if _, ok := m.rows[v.ID]; !ok {
			m.rows[v.ID] = v
			n++
		}
	}
	return n, nil
}

func (m *mockVideoRepo) GetByID(ctx context.Context, id string) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.rows[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (m *mockVideoRepo) GetByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Video{}
	for _, id := range ids {
		if v, ok := m.rows[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockVideoRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *mockVideoRepo) UnreferencedIDs(ctx context.Context, after string, limit int) ([]string, error) {
	return m.unreferencedIDs, nil
}

type mockProvider struct {
	calls      atomic.Int32
	lookupFunc func(ctx context.Context, id string) (*models.Video, error)
}

func (m *mockProvider) Lookup(ctx context.Context, id string) (*models.Video, error) {
	m.calls.Add(1)
	if m.lookupFunc == nil {
		return &models.Video{ID: id, Title: "fetched " + id}, nil
	}
	return m.lookupFunc(ctx, id)
}

func TestEnsureVideos_FetchesOnlyMissing(t *testing.T) {
	t.Parallel()

	repo := newMockVideoRepo("known")
	provider := &mockProvider{}
	store := NewStore(repo, provider, Options{}, nil)

	failed, err := store.EnsureVideos(context.Background(), []string{"known", "new1", "new2", "new1"})
	if err != nil {
		t.Fatalf("EnsureVideos failed: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("Expected no failures, got %v", failed)
	}
	if n := provider.calls.Load(); n != 2 {
		t.Errorf("Expected 2 provider calls, got %d", n)
	}
	if repo.rows["known"].Title != "existing known" {
		t.Error("Expected existing record to be left untouched")
	}
	if repo.rows["new1"].Title != "fetched new1" {
		t.Errorf("Expected new1 to be stored, got %+v", repo.rows["new1"])
	}
}

func TestEnsureVideos_ReportsFailuresInInputOrder(t *testing.T) {
	t.Parallel()

	repo := newMockVideoRepo()
	provider := &mockProvider{lookupFunc: func(ctx context.Context, id string) (*models.Video, error) {
		switch id {
		case "gone":
			return nil, youtube.ErrVideoNotFound
		case "untitled":
			return &models.Video{ID: id}, nil
		case "broken":
			return nil, &youtube.APIError{StatusCode: 500}
		}
		return &models.Video{ID: id, Title: "ok"}, nil
	}}
	store := NewStore(repo, provider, Options{Concurrency: 2}, nil)

	failed, err := store.EnsureVideos(context.Background(), []string{"broken", "good", "gone", "untitled"})
	if err != nil {
		t.Fatalf("EnsureVideos failed: %v", err)
	}
	if want := []string{"broken", "gone", "untitled"}; !reflect.DeepEqual(failed, want) {
		t.Errorf("Expected failed %v, got %v", want, failed)
	}
	if len(repo.rows) != 1 {
		t.Errorf("Expected only the good video stored, got %v", repo.rows)
	}
	for _, id := range []string{"broken", "gone", "untitled"} {
		if _, ok := repo.rows[id]; ok {
			t.Errorf("Failed video %s must not be stored", id)
		}
	}
}

func TestEnsureVideos_TimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()

	repo := newMockVideoRepo()
	provider := &mockProvider{lookupFunc: func(ctx context.Context, id string) (*models.Video, error) {
		if id == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &models.Video{ID: id, Title: "fast"}, nil
	}}
	store := NewStore(repo, provider, Options{LookupTimeout: 20 * time.Millisecond}, nil)

	failed, err := store.EnsureVideos(context.Background(), []string{"slow", "fast"})
	if err != nil {
		t.Fatalf("EnsureVideos failed: %v", err)
	}
	if !reflect.DeepEqual(failed, []string{"slow"}) {
		t.Errorf("Expected slow to fail, got %v", failed)
	}
	if _, ok := repo.rows["fast"]; !ok {
		t.Error("Expected fast to be stored")
	}
}

func TestEnsureVideos_StorageErrors(t *testing.T) {
	t.Parallel()

	storageErr := errors.New("connection reset")

	repo := newMockVideoRepo()
	repo.existingErr = storageErr
	store := NewStore(repo, &mockProvider{}, Options{}, nil)
	if _, err := store.EnsureVideos(context.Background(), []string{"a"}); !errors.Is(err, storageErr) {
		t.Errorf("Expected existence check error, got %v", err)
	}

	repo = newMockVideoRepo()
	repo.insertErr = storageErr
	store = NewStore(repo, &mockProvider{}, Options{}, nil)
	if _, err := store.EnsureVideos(context.Background(), []string{"a"}); !errors.Is(err, storageErr) {
		t.Errorf("Expected insert error, got %v", err)
	}
}

func TestEnsureVideos_EmptyInput(t *testing.T) {
	t.Parallel()

	repo := newMockVideoRepo()
	repo.existingErr = errors.New("should not be called")
	store := NewStore(repo, &mockProvider{}, Options{}, nil)

	failed, err := store.EnsureVideos(context.Background(), []string{"", "  "})
	if err != nil {
		t.Fatalf("EnsureVideos failed: %v", err)
	}
	if failed == nil || len(failed) != 0 {
		t.Errorf("Expected empty failed list, got %#v", failed)
	}
}

func TestEnsureVideos_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	provider := &mockProvider{lookupFunc: func(ctx context.Context, id string) (*models.Video, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return &models.Video{ID: id, Title: id}, nil
	}}
	store := NewStore(newMockVideoRepo(), provider, Options{Concurrency: 3}, nil)

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	if _, err := store.EnsureVideos(context.Background(), ids); err != nil {
		t.Fatalf("EnsureVideos failed: %v", err)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("Expected at most 3 concurrent lookups, saw %d", p)
	}
}

func TestStore_ReadAndDeleteDelegate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newMockVideoRepo("a", "b")
	store := NewStore(repo, &mockProvider{}, Options{}, nil)

	if v, err := store.GetByID(ctx, "a"); err != nil || v == nil {
		t.Fatalf("GetByID failed: %v %v", v, err)
	}
	if v, err := store.GetByID(ctx, "zzz"); err != nil || v != nil {
		t.Errorf("Expected nil for missing video, got %v %v", v, err)
	}

	got, err := store.GetByIDs(ctx, []string{"b", "zzz", "a"})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("Unexpected videos %+v", got)
	}

	n, err := store.DeleteMany(ctx, []string{"a", "zzz"})
	if err != nil || n != 1 {
		t.Errorf("Expected one deletion, got %d %v", n, err)
	}
}
