// Package cache keeps short-lived copies of read results in front of the
// library. Entries are keyed by operation, user and a hash of the arguments.
// Every user has a generation number that is part of each key; a write by that
// user bumps it, so older entries are never read again and age out by TTL.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a backend after Close
var ErrClosed = errors.New("cache closed")

// Backend stores encoded entries and per-user generations
type Backend interface {
	// Get returns the entry for key; ok is false on a miss
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Generation returns the current generation for userID, zero when never bumped
	Generation(ctx context.Context, userID string) (uint64, error)
	Bump(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Close() error
}
