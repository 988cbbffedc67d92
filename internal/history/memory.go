package history

import (
	"context"
	"sync"
	"time"
)

const defaultMaxRows = 1000

// memoryStore is the fallback backend when sqlite is disabled: a bounded
// in-memory ring, newest entries kept.
type memoryStore struct {
	mu      sync.Mutex
	entries []Entry
	maxRows int
}

func newMemoryStore(maxRows int) *memoryStore {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &memoryStore{maxRows: maxRows}
}

func (s *memoryStore) Append(_ context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxRows {
		s.entries = s.entries[len(s.entries)-s.maxRows:]
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	// Newest first.
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *memoryStore) Close() error { return nil }
