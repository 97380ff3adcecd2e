package repository

import (
	"sync"

	"github.com/noah-isme/sku-media-api/internal/models"
)

// RecordStore keeps processing records in process memory. Records do not
// survive a restart. Guarded by a mutex so concurrent submissions and status
// queries never observe partial writes.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*models.ProcessingRecord
	order   []string
}

// NewRecordStore constructs an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]*models.ProcessingRecord)}
}

// Create registers a new record. The ID must be unique; a duplicate is
// silently ignored so callers cannot clobber another run's record.
func (s *RecordStore) Create(rec *models.ProcessingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return
	}
	clone := *rec
	s.records[rec.ID] = &clone
	s.order = append(s.order, rec.ID)
}

// Get returns a copy of a record.
func (s *RecordStore) Get(id string) (models.ProcessingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return models.ProcessingRecord{}, false
	}
	return *rec, true
}

// MarkProcessing flips a record into the processing state. Regressions are
// rejected to keep the status lifecycle monotonic.
func (s *RecordStore) MarkProcessing(id string) {
	s.transition(id, models.StatusProcessing, func(rec *models.ProcessingRecord) {})
}

// MarkDone finalizes a record with its pipeline outputs.
func (s *RecordStore) MarkDone(id string, width, height, bytes int, previewURL string) {
	s.transition(id, models.StatusDone, func(rec *models.ProcessingRecord) {
		rec.Width = width
		rec.Height = height
		rec.Bytes = bytes
		rec.PreviewURL = previewURL
	})
}

// MarkFailed finalizes a record with a human-readable error.
func (s *RecordStore) MarkFailed(id string, message string) {
	s.transition(id, models.StatusFailed, func(rec *models.ProcessingRecord) {
		rec.Error = message
	})
}

// Snapshot lists all records in insertion order.
func (s *RecordStore) Snapshot() []models.ProcessingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ProcessingRecord, 0, len(s.order))
	for _, id := range s.order {
		if rec, ok := s.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

func (s *RecordStore) transition(id string, next models.RecordStatus, apply func(*models.ProcessingRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return
	}
	if !rec.Status.CanTransitionTo(next) {
		return
	}
	rec.Status = next
	apply(rec)
}
