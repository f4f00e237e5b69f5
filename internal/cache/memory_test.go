package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestMemoryBackend(t *testing.T) *MemoryBackend {
	t.Helper()
	b, err := NewMemoryBackend(100)
	if err != nil {
		t.Fatalf("NewMemoryBackend failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestMemoryBackend_GetSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestMemoryBackend(t)

	if _, ok, err := b.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}
	if err := b.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	b.Wait()

	value, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Errorf("Expected hit with v, got %q ok=%v err=%v", value, ok, err)
	}
}

func TestMemoryBackend_Generations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newTestMemoryBackend(t)

	if gen, _ := b.Generation(ctx, "u"); gen != 0 {
		t.Errorf("Expected generation 0, got %d", gen)
	}
	_ = b.Bump(ctx, "u")
	first, _ := b.Generation(ctx, "u")
	_ = b.Bump(ctx, "u")
	second, _ := b.Generation(ctx, "u")
	if first == 0 || second <= first {
		t.Errorf("Expected increasing generations, got %d then %d", first, second)
	}
	if gen, _ := b.Generation(ctx, "other"); gen != 0 {
		t.Errorf("Expected other user unaffected, got %d", gen)
	}
}

func TestMemoryBackend_GenerationsAreBounded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, err := NewMemoryBackend(3)
	if err != nil {
		t.Fatalf("NewMemoryBackend failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	seen := map[string]uint64{}
	for i := 0; i < 50; i++ {
		user := fmt.Sprintf("user_%d", i%10)
		before, _ := b.Generation(ctx, user)
		if before < seen[user] {
			t.Fatalf("%s: generation went back from %d to %d", user, seen[user], before)
		}
		if err := b.Bump(ctx, user); err != nil {
			t.Fatalf("Bump failed: %v", err)
		}
		after, _ := b.Generation(ctx, user)
		if after <= before {
			t.Fatalf("%s: bump did not advance generation (%d -> %d)", user, before, after)
		}
		seen[user] = after
	}

	b.mu.Lock()
	tracked := len(b.generations)
	b.mu.Unlock()
	if tracked > 3 {
		t.Errorf("Expected at most 3 tracked generations, got %d", tracked)
	}
	for user, last := range seen {
		if gen, _ := b.Generation(ctx, user); gen < last {
			t.Errorf("%s: dropped generation reads %d, below last bump %d", user, gen, last)
		}
	}
}

func TestMemoryBackend_Closed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, err := NewMemoryBackend(0)
	if err != nil {
		t.Fatalf("NewMemoryBackend failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
	if err := b.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Ping, got %v", err)
	}
	if _, _, err := b.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Get, got %v", err)
	}
	if err := b.Bump(ctx, "u"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Bump, got %v", err)
	}
}
