package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const defaultMaxEntries = 10000

// MemoryBackend is an in-process backend bounded by entry count. Sets are
// applied asynchronously; a Get right after a Set may still miss.
//
// Generations are drawn from one increasing sequence and at most maxEntries
// users keep their own. When the least recently bumped user is dropped, its
// value raises floor, and every user without a tracked generation reports
// floor. A user's generation therefore never goes backwards, so entries
// written before a bump cannot be read again.
type MemoryBackend struct {
	entries *ristretto.Cache[string, []byte]

	mu             sync.Mutex
	maxGenerations int
	seq            uint64
	floor          uint64
	generations    map[string]*list.Element // value is *generation
	bumpOrder      *list.List               // least recently bumped first
	closed         bool
}

type generation struct {
	userID string
	value  uint64
}

// NewMemoryBackend creates a backend holding at most maxEntries entries
func NewMemoryBackend(maxEntries int64) (*MemoryBackend, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	entries, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryBackend{
		entries:        entries,
		maxGenerations: int(maxEntries),
		generations:    make(map[string]*list.Element),
		bumpOrder:      list.New(),
	}, nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.isClosed() {
		return nil, false, ErrClosed
	}
	value, ok := m.entries.Get(key)
	return value, ok, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.isClosed() {
		return ErrClosed
	}
	m.entries.SetWithTTL(key, value, 1, ttl)
	return nil
}

func (m *MemoryBackend) Generation(ctx context.Context, userID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if el, ok := m.generations[userID]; ok {
		return el.Value.(*generation).value, nil
	}
	return m.floor, nil
}

func (m *MemoryBackend) Bump(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.seq++
	if el, ok := m.generations[userID]; ok {
		el.Value.(*generation).value = m.seq
		m.bumpOrder.MoveToBack(el)
		return nil
	}
	m.generations[userID] = m.bumpOrder.PushBack(&generation{userID: userID, value: m.seq})
	for len(m.generations) > m.maxGenerations {
		oldest := m.bumpOrder.Remove(m.bumpOrder.Front()).(*generation)
		delete(m.generations, oldest.userID)
		m.floor = max(m.floor, oldest.value)
	}
	return nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	return nil
}

// Wait blocks until pending sets are applied
func (m *MemoryBackend) Wait() {
	m.entries.Wait()
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.entries.Close()
	return nil
}

func (m *MemoryBackend) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
