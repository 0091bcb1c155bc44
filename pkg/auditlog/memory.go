package auditlog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an append-only in-memory Writer and Reader, used in tests
// and as a safety net when no durable audit backend is configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStorage creates an empty in-memory audit store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

var (
	_ Writer = (*MemoryStorage)(nil)
	_ Reader = (*MemoryStorage)(nil)
)

// Record validates and appends the entry, assigning ID and timestamp when
// the caller left them empty.
func (s *MemoryStorage) Record(_ context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Find returns matching entries, newest first.
func (s *MemoryStorage) Find(_ context.Context, criteria Criteria) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if !matches(entry, criteria) {
			continue
		}
		out = append(out, entry)
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of all stored entries in append order.
func (s *MemoryStorage) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

func matches(entry Entry, criteria Criteria) bool {
	if criteria.TenantID != "" && entry.TenantID != criteria.TenantID {
		return false
	}
	if criteria.ActorID != "" && entry.ActorID != criteria.ActorID {
		return false
	}
	if criteria.ActionID != "" && entry.ActionID != criteria.ActionID {
		return false
	}
	if !criteria.Since.IsZero() && entry.CreatedAt.Before(criteria.Since) {
		return false
	}
	if !criteria.Until.IsZero() && entry.CreatedAt.After(criteria.Until) {
		return false
	}
	return true
}
