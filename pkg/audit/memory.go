package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage using an in-memory map. Records are
// lost on process exit; use the SQLite backend when durability matters.
type MemoryStorage struct {
	records map[uuid.UUID]*Record
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[uuid.UUID]*Record),
	}
}

// Store persists a record to memory.
func (s *MemoryStorage) Store(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return NewStorageError("memory", "store", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	// Copy to insulate the store from caller mutation.
	cp := *record
	s.records[record.ID] = &cp

	return nil
}

// Query retrieves records matching the filters, newest first.
func (s *MemoryStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}
	if query == nil {
		query = &Query{}
	}

	results := make([]*Record, 0)
	for _, record := range s.records {
		if matchesQuery(record, query) {
			cp := *record
			results = append(results, &cp)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	start := query.Offset
	if start > len(results) {
		return []*Record{}, nil
	}
	results = results[start:]

	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results, nil
}

// Count returns the number of records matching the filters.
func (s *MemoryStorage) Count(ctx context.Context, query *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStorageClosed
	}
	if query == nil {
		query = &Query{}
	}

	var n int64
	for _, record := range s.records {
		if matchesQuery(record, query) {
			n++
		}
	}
	return n, nil
}

// Prune deletes records older than cutoff.
func (s *MemoryStorage) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStorageClosed
	}

	var deleted int64
	for id, record := range s.records {
		if record.Timestamp.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Backend returns the backend name.
func (s *MemoryStorage) Backend() string { return "memory" }

// Close marks the store closed. Subsequent operations fail with
// ErrStorageClosed.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = nil
	return nil
}

func matchesQuery(record *Record, query *Query) bool {
	if query.DocumentID != "" && record.DocumentID != query.DocumentID {
		return false
	}
	if query.Outcome != "" && record.Outcome != query.Outcome {
		return false
	}
	if query.Since != nil && record.Timestamp.Before(*query.Since) {
		return false
	}
	if query.Until != nil && !record.Timestamp.Before(*query.Until) {
		return false
	}
	return true
}
