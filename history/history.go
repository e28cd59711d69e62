// Package history keeps a bounded, append-only log of past executions.
package history

import (
	"sync"
	"time"

	"github.com/runcell/runcell/language"
)

// Status is the lifecycle state of one execution record.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether the status is a final outcome.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Record is one code execution. Once terminal it is immutable; the
// store only ever holds finished records.
type Record struct {
	ID          string            `json:"id"`
	Code        string            `json:"code"`
	Language    language.Language `json:"language"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Status      Status            `json:"status"`
	Output      string            `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`

	// ExecutionTime is the wall-clock duration from submission to the
	// terminal outcome.
	ExecutionTime time.Duration `json:"execution_time"`
}

// DefaultCapacity is the bound on retained records.
const DefaultCapacity = 100

// Store is a capacity-bounded FIFO of execution records, ordered by
// submission. Oldest records are evicted first on overflow.
type Store struct {
	mu       sync.Mutex
	capacity int
	records  []Record
}

// NewStore creates a Store. capacity <= 0 selects DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Append adds a finished record, evicting the oldest at capacity.
func (s *Store) Append(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if len(s.records) > s.capacity {
		overflow := len(s.records) - s.capacity
		s.records = append(s.records[:0:0], s.records[overflow:]...)
	}
}

// All returns every retained record in submission order.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// ByLanguage returns the retained records for one language,
// order-preserving.
func (s *Store) ByLanguage(lang language.Language) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, rec := range s.records {
		if rec.Language == lang {
			out = append(out, rec)
		}
	}
	return out
}

// Len reports the number of retained records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear drops every record.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

// ClearLanguage drops the records for one language, keeping the rest
// in order.
func (s *Store) ClearLanguage(lang language.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.Language != lang {
			kept = append(kept, rec)
		}
	}
	s.records = kept
}
