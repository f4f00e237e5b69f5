package cleanup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestGarbageCollector_CollectsAcrossBatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 7; i++ {
		ids = append(ids, fmt.Sprintf("v%d", i))
	}
	f := newStoreFixture(t, ids...)
	if err := f.tags.AddAssociations(ctx, "u", []string{"v1", "v4"}, []string{"keep"}); err != nil {
		t.Fatalf("AddAssociations failed: %v", err)
	}

	gc := NewGarbageCollector(f.videos, NewSweeper(f.tags, f.videos, nil), time.Hour, 2, nil)
	deleted, err := gc.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if deleted != 5 {
		t.Errorf("Expected 5 deleted, got %d", deleted)
	}
	for _, id := range ids {
		want := id == "v1" || id == "v4"
		if got := f.exists(t, id); got != want {
			t.Errorf("Video %s exists=%v, want %v", id, got, want)
		}
	}

	deleted, err = gc.Collect(ctx)
	if err != nil || deleted != 0 {
		t.Errorf("Expected a second collect to be a no-op, got %d %v", deleted, err)
	}
}

type mockLister struct {
	err error
}

func (m *mockLister) UnreferencedIDs(ctx context.Context, after string, limit int) ([]string, error) {
	return nil, m.err
}

func TestGarbageCollector_ListError(t *testing.T) {
	t.Parallel()

	listErr := errors.New("query failed")
	gc := NewGarbageCollector(&mockLister{err: listErr}, NewSweeper(&mockOrphanFinder{}, &mockDeleter{}, nil), time.Hour, 10, nil)
	if _, err := gc.Collect(context.Background()); !errors.Is(err, listErr) {
		t.Errorf("Expected list error, got %v", err)
	}
}

func TestGarbageCollector_Start_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(&mockLister{}, NewSweeper(&mockOrphanFinder{}, &mockDeleter{}, nil), time.Hour, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gc.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context cancelled error, got %v", err)
	}
}
