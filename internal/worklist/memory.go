package worklist

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. Tests use it in place of a real
// backend; FailWrites and FailReads inject store errors.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	writes  []Write

	FailReads  error
	FailWrites error
}

// Write records one WriteStatus call.
type Write struct {
	Position int
	Status   Status
}

// NewMemoryStore returns a store holding records. Positions are assigned
// from slice order.
func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{}
	for i, rec := range records {
		rec.Position = i + FirstPosition
		s.records = append(s.records, rec)
	}
	return s
}

func (s *MemoryStore) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return Snapshot{}, ReadError(s.FailReads)
	}
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return Snapshot{Records: out}, nil
}

func (s *MemoryStore) WriteStatus(ctx context.Context, position int, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return WriteError(position, s.FailWrites)
	}
	i := position - FirstPosition
	if i < 0 || i >= len(s.records) {
		return WriteError(position, fmt.Errorf("no such row"))
	}
	s.records[i].Status = status
	s.writes = append(s.writes, Write{Position: position, Status: status})
	return nil
}

// Append adds a record at the end of the store, as another operator adding
// rows to the sheet would.
func (s *MemoryStore) Append(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Position = len(s.records) + FirstPosition
	s.records = append(s.records, rec)
}

// SetStatus changes a record's status without logging a write, as another
// actor editing the sheet would.
func (s *MemoryStore) SetStatus(position int, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := position - FirstPosition; i >= 0 && i < len(s.records) {
		s.records[i].Status = status
	}
}

// Writes returns every successful WriteStatus call in order.
func (s *MemoryStore) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}
