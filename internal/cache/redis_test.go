package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestRedisBackend(t *testing.T) *RedisBackend {
	t.Helper()
	url := os.Getenv("TAGTUBE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TAGTUBE_TEST_REDIS_URL not set")
	}
	client, err := NewRedisClient(context.Background(), url)
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client, "tagtube_test_"+uuid.NewString())
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	b := newTestRedisBackend(t)

	if _, ok, err := b.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}
	if err := b.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Errorf("Expected hit with v, got %q ok=%v err=%v", value, ok, err)
	}

	if gen, err := b.Generation(ctx, "u"); err != nil || gen != 0 {
		t.Errorf("Expected generation 0, got %d err=%v", gen, err)
	}
	if err := b.Bump(ctx, "u"); err != nil {
		t.Fatalf("Bump failed: %v", err)
	}
	if gen, err := b.Generation(ctx, "u"); err != nil || gen != 1 {
		t.Errorf("Expected generation 1, got %d err=%v", gen, err)
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	t.Parallel()
	if _, err := NewRedisClient(context.Background(), "not-a-url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}
