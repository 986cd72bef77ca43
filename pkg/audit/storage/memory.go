package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"mercator-hq/adjudicator/pkg/audit"
)

const backendMemory = "memory"

// MemoryStorage implements audit.Storage in memory. Records are lost on
// exit; use it for tests and one-shot CLI runs.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*audit.Record
	closed  bool
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]*audit.Record)}
}

// Store saves a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audit.NewStorageError(backendMemory, "store", errClosed)
	}
	if _, exists := s.records[record.ID]; exists {
		return audit.NewStorageError(backendMemory, "store", errDuplicate(record.ID))
	}
	s.records[record.ID] = copyRecord(record)
	return nil
}

// Get returns a copy of the record with id.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, audit.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Query returns copies of the records matching q, ordered by recorded time.
func (s *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	matched := s.match(q)
	s.mu.RUnlock()

	asc := strings.EqualFold(q.SortOrder, "asc")
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			if asc {
				return a.RecordedAt.Before(b.RecordedAt)
			}
			return a.RecordedAt.After(b.RecordedAt)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	if q.Offset >= len(matched) {
		return []*audit.Record{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	out := make([]*audit.Record, len(matched))
	for i, rec := range matched {
		out[i] = copyRecord(rec)
	}
	return out, nil
}

// Count returns the number of records matching q.
func (s *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.match(q))), nil
}

// Delete removes records matching q.
func (s *MemoryStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.match(q)
	for _, rec := range matched {
		delete(s.records, rec.ID)
	}
	return int64(len(matched)), nil
}

// DeleteOldest removes the oldest records beyond keep.
func (s *MemoryStorage) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(len(s.records)) <= keep {
		return 0, nil
	}
	all := s.match(&audit.Query{})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].RecordedAt.Equal(all[j].RecordedAt) {
			return all[i].RecordedAt.After(all[j].RecordedAt)
		}
		return all[i].ID > all[j].ID
	})
	if keep < 0 {
		keep = 0
	}
	var deleted int64
	for _, rec := range all[keep:] {
		delete(s.records, rec.ID)
		deleted++
	}
	return deleted, nil
}

// Close drops all records. Later stores fail.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = make(map[string]*audit.Record)
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// match returns the stored records matching q. Callers hold mu.
func (s *MemoryStorage) match(q *audit.Query) []*audit.Record {
	var out []*audit.Record
	for _, rec := range s.records {
		if matchesQuery(rec, q) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesQuery(rec *audit.Record, q *audit.Query) bool {
	if q.StartTime != nil && rec.RecordedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && rec.RecordedAt.After(*q.EndTime) {
		return false
	}
	if q.CaseID != "" && rec.CaseID != q.CaseID {
		return false
	}
	if q.CatalogVersion != "" && rec.CatalogVersion != q.CatalogVersion {
		return false
	}
	if q.RuleID != "" && rec.BindingRule != q.RuleID {
		return false
	}
	if q.Outcome != "" && !strings.EqualFold(rec.Outcome, q.Outcome) {
		return false
	}
	if q.NeedsReview != nil && rec.NeedsReview != *q.NeedsReview {
		return false
	}
	if q.HasConflict != nil && rec.HasConflict() != *q.HasConflict {
		return false
	}
	switch q.Status {
	case "success":
		if rec.Error != "" {
			return false
		}
	case "error":
		if rec.Error == "" {
			return false
		}
	}
	return true
}

func copyRecord(rec *audit.Record) *audit.Record {
	c := *rec
	if rec.Binding != nil {
		b := *rec.Binding
		c.Binding = &b
	}
	c.Candidates = append(c.Candidates[:0:0], rec.Candidates...)
	return &c
}
