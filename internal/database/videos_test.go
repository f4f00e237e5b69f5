package database

import (
	"context"
	"reflect"
	"testing"

	"github.com/benvon/tagtube/internal/models"
)

func sampleVideo(id string) models.Video {
	return models.Video{
		ID:           id,
		Title:        "Title " + id,
		Author:       "Author",
		AuthorURL:    "https://www.youtube.com/@author",
		ThumbnailURL: "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg",
	}
}

func TestVideoRepository_InsertAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewVideoRepository(newTestDB(t))

	inserted, err := r.Insert(ctx, []models.Video{sampleVideo("abc"), sampleVideo("def")})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("Expected 2 inserted videos, got %d", inserted)
	}

	changed := sampleVideo("abc")
	changed.Title = "Replacement"
	inserted, err = r.Insert(ctx, []models.Video{changed})
	if err != nil {
		t.Fatalf("Second insert failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected existing video to be left alone, inserted %d", inserted)
	}

	got, err := r.GetByID(ctx, "abc")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil || !reflect.DeepEqual(*got, sampleVideo("abc")) {
		t.Errorf("Unexpected video %+v", got)
	}

	missing, err := r.GetByID(ctx, "nope")
	if err != nil {
		t.Fatalf("GetByID for missing id failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing video, got %+v", missing)
	}
}

func TestVideoRepository_GetByIDsPreservesOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewVideoRepository(newTestDB(t))

	if _, err := r.Insert(ctx, []models.Video{sampleVideo("a"), sampleVideo("b"), sampleVideo("c")}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := r.GetByIDs(ctx, []string{"c", "missing", "a", "c"})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	var ids []string
	for _, v := range got {
		ids = append(ids, v.ID)
	}
	if want := []string{"c", "a"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected ids %v, got %v", want, ids)
	}

	empty, err := r.GetByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("GetByIDs on empty input failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no videos, got %v", empty)
	}
}

func TestVideoRepository_ExistingIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewVideoRepository(newTestDB(t))

	if _, err := r.Insert(ctx, []models.Video{sampleVideo("a")}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	existing, err := r.ExistingIDs(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("ExistingIDs failed: %v", err)
	}
	if _, ok := existing["a"]; !ok {
		t.Error("Expected a to exist")
	}
	if _, ok := existing["b"]; ok {
		t.Error("Expected b to be missing")
	}
}

func TestVideoRepository_DeleteMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewVideoRepository(newTestDB(t))

	if _, err := r.Insert(ctx, []models.Video{sampleVideo("a"), sampleVideo("b")}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	deleted, err := r.DeleteMany(ctx, []string{"a", "ghost"})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted video, got %d", deleted)
	}

	deleted, err = r.DeleteMany(ctx, nil)
	if err != nil || deleted != 0 {
		t.Errorf("Expected empty delete to be a no-op, got %d, %v", deleted, err)
	}

	if v, _ := r.GetByID(ctx, "b"); v == nil {
		t.Error("Expected b to survive")
	}
}

func TestVideoRepository_UnreferencedIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	videos := NewVideoRepository(db)
	tags := NewTagAssociationRepository(db)

	var all []models.Video
	for _, id := range []string{"v1", "v2", "v3", "v4", "v5"} {
		all = append(all, sampleVideo(id))
	}
	if _, err := videos.Insert(ctx, all); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := tags.AddAssociations(ctx, "u", []string{"v2", "v4"}, []string{"t"}); err != nil {
		t.Fatalf("AddAssociations failed: %v", err)
	}

	first, err := videos.UnreferencedIDs(ctx, "", 2)
	if err != nil {
		t.Fatalf("UnreferencedIDs failed: %v", err)
	}
	if want := []string{"v1", "v3"}; !reflect.DeepEqual(first, want) {
		t.Errorf("Expected first batch %v, got %v", want, first)
	}

	second, err := videos.UnreferencedIDs(ctx, first[len(first)-1], 2)
	if err != nil {
		t.Fatalf("UnreferencedIDs failed: %v", err)
	}
	if want := []string{"v5"}; !reflect.DeepEqual(second, want) {
		t.Errorf("Expected second batch %v, got %v", want, second)
	}

	if _, err := videos.UnreferencedIDs(ctx, "", 0); err == nil {
		t.Error("Expected error for non-positive limit")
	}
}
