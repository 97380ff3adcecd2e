package repository

import (
	"sync"
	"time"

	"github.com/noah-isme/sku-media-api/internal/models"
)

const defaultWebhookLogCapacity = 100

// WebhookLogStore is a bounded in-memory ring of relay exchanges. When the
// ring is full the oldest entry is dropped.
type WebhookLogStore struct {
	mu       sync.RWMutex
	entries  []models.WebhookLogEntry
	capacity int
	now      func() time.Time
}

// NewWebhookLogStore constructs a ring retaining up to capacity entries.
func NewWebhookLogStore(capacity int) *WebhookLogStore {
	if capacity <= 0 {
		capacity = defaultWebhookLogCapacity
	}
	return &WebhookLogStore{capacity: capacity, now: time.Now}
}

// Append records an entry, stamping it if the caller did not.
func (s *WebhookLogStore) Append(entry models.WebhookLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.capacity {
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}
}

// List returns retained entries, most recent first.
func (s *WebhookLogStore) List() []models.WebhookLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WebhookLogEntry, len(s.entries))
	for i, entry := range s.entries {
		out[len(s.entries)-1-i] = entry
	}
	return out
}

// Total reports how many entries are retained.
func (s *WebhookLogStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
