package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

// RecordStore keeps archive records in insertion order.
type RecordStore struct {
	mu      sync.RWMutex
	records []snapshot.Record
	index   map[string]int
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{index: make(map[string]int)}
}

// SaveRecord stores a record. IDs must be unique.
func (s *RecordStore) SaveRecord(_ context.Context, record snapshot.Record) error {
	if record.ID == "" {
		return errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[record.ID]; exists {
		return errors.New("record already exists")
	}
	s.index[record.ID] = len(s.records)
	s.records = append(s.records, record)
	return nil
}

// Get fetches a record by ID.
func (s *RecordStore) Get(id string) (snapshot.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return snapshot.Record{}, false
	}
	return s.records[i], true
}

// Records returns a copy of every stored record.
func (s *RecordStore) Records() []snapshot.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snapshot.Record, len(s.records))
	copy(out, s.records)
	return out
}
