package repository

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBufferNotFound is returned when no bytes are stored under a key.
var ErrBufferNotFound = errors.New("buffer not found")

// BufferStore holds processed image bytes between the processing request and
// later preview/archive requests. Entries are evicted once they outlive the
// configured TTL; with the Redis backend the server handles expiry natively.
type BufferStore interface {
	Set(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Sweep evicts expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

type bufferEntry struct {
	data     []byte
	storedAt time.Time
}

// MemoryBufferStore is the single-process backend: a mutex-guarded map with
// timestamped entries.
type MemoryBufferStore struct {
	mu      sync.RWMutex
	entries map[string]bufferEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryBufferStore constructs a store evicting entries older than ttl.
func NewMemoryBufferStore(ttl time.Duration) *MemoryBufferStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryBufferStore{
		entries: make(map[string]bufferEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryBufferStore) Set(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = bufferEntry{data: data, storedAt: s.now()}
	return nil
}

func (s *MemoryBufferStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrBufferNotFound
	}
	return entry.data, nil
}

func (s *MemoryBufferStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryBufferStore) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, entry := range s.entries {
		if entry.storedAt.Before(cutoff) {
			delete(s.entries, key)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryBufferStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
