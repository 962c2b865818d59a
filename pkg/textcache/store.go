package textcache

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by Store.Get and Manager.Get on a cache miss.
	ErrNotFound = errors.New("textcache: entry not found")
	// ErrStoreFull is returned by capacity-limited stores when a write would
	// exceed their total capacity.
	ErrStoreFull = errors.New("textcache: store capacity exceeded")
)

// Store is the key-value backend a Manager persists serialized entries to.
// storedAt is kept alongside the payload so EvictOlderThan can drop aged
// entries without deserializing them.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte, storedAt time.Time) error
	Delete(ctx context.Context, key string) error
	// EvictOlderThan removes every entry stored before the cutoff and
	// returns how many were dropped.
	EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type memoryItem struct {
	payload  []byte
	storedAt time.Time
}

// MemoryStore is an in-memory Store used in tests and for engines that do
// not need persistence. A non-zero maxBytes enforces a total capacity the
// way a browser quota would, returning ErrStoreFull on overflow.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	maxBytes int
	used     int
}

// NewMemoryStore creates a MemoryStore. maxBytes of 0 means unlimited.
func NewMemoryStore(maxBytes int) *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]memoryItem),
		maxBytes: maxBytes,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return item.payload, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, payload []byte, storedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.used - len(s.items[key].payload) + len(payload)
	if s.maxBytes > 0 && next > s.maxBytes {
		return ErrStoreFull
	}

	s.items[key] = memoryItem{payload: payload, storedAt: storedAt}
	s.used = next
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[key]; ok {
		s.used -= len(item.payload)
		delete(s.items, key)
	}
	return nil
}

// EvictOlderThan implements Store.
func (s *MemoryStore) EvictOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, item := range s.items {
		if item.storedAt.Before(cutoff) {
			s.used -= len(item.payload)
			delete(s.items, key)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
