package redaction

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store holds the ordered redaction marks of one session.
// Insertion order is preserved and doubles as paint order on export.
type Store struct {
	mu      sync.RWMutex
	marks   []Mark
	entropy io.Reader
	now     func() time.Time
}

// NewStore creates an empty mark store with its own ID sequence
func NewStore() *Store {
	return &Store{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewMarks turns one page's detections into marks without committing them.
// IDs combine page, batch index and a monotonic ULID, so they stay unique for the
// lifetime of the store even across runs that are later discarded.
func (s *Store) NewMarks(pageNumber int, detections []Detection) []Mark {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks := make([]Mark, 0, len(detections))
	for i, d := range detections {
		id := ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
		marks = append(marks, Mark{
			ID:         fmt.Sprintf("redact-%d-%d-%s", pageNumber, i, id.String()),
			Category:   d.Category,
			SourceText: d.Text,
			PageNumber: pageNumber,
			Box:        d.Box,
		})
	}
	return marks
}

// AddBatch creates marks for one page's detections and appends them
func (s *Store) AddBatch(pageNumber int, detections []Detection) []Mark {
	marks := s.NewMarks(pageNumber, detections)

	s.mu.Lock()
	s.marks = append(s.marks, marks...)
	s.mu.Unlock()

	return marks
}

// Replace swaps the whole collection in one step
func (s *Store) Replace(marks []Mark) {
	next := make([]Mark, len(marks))
	copy(next, marks)

	s.mu.Lock()
	s.marks = next
	s.mu.Unlock()
}

// Remove deletes the mark with the given id. Missing ids are ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.marks {
		if m.ID == id {
			s.marks = append(s.marks[:i:i], s.marks[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll clears every mark
func (s *Store) RemoveAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.marks)
	s.marks = nil
	return n
}

// All returns a copy of every mark in insertion order
func (s *Store) All() []Mark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Mark, len(s.marks))
	copy(out, s.marks)
	return out
}

// Len returns the number of marks
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.marks)
}

// FilterByPage returns the marks on one page in insertion order
func (s *Store) FilterByPage(pageNumber int) []Mark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Mark
	for _, m := range s.marks {
		if m.PageNumber == pageNumber {
			out = append(out, m)
		}
	}
	return out
}

// Visible returns marks whose category is in the filter, in insertion order.
// An empty filter matches everything.
func (s *Store) Visible(categories map[Category]bool) []Mark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Mark
	for _, m := range s.marks {
		if len(categories) == 0 || categories[m.Category] {
			out = append(out, m)
		}
	}
	return out
}
