// Package memory is an in-memory audit store for tests.
package memory

import (
	"context"
	"sync"

	"titleledger/internal/audit"
)

type Store struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything appended, in order.
func (s *Store) Entries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ByRecord returns entries for one record, in append order.
func (s *Store) ByRecord(tableName, recordID string) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, entry := range s.entries {
		if entry.TableName == tableName && entry.RecordID == recordID {
			out = append(out, entry)
		}
	}
	return out
}
