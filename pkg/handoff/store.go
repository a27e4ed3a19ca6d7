// Package handoff carries an intake record from the intake page to the results
// page. Entries are short-lived and can be taken exactly once, so a reload of the
// results page never sees the same record twice.
package handoff

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/readmit-ai/hrp/pkg/common/models"
)

var ErrNotFound = errors.New("handoff not found")

type Store interface {
	Put(ctx context.Context, record models.IntakeRecord) (string, error)
	Take(ctx context.Context, id string) (models.IntakeRecord, error)
}

type memoryEntry struct {
	record  models.IntakeRecord
	expires time.Time
}

type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Put(ctx context.Context, record models.IntakeRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, key)
		}
	}
	s.entries[id] = memoryEntry{record: record.Clone(), expires: now.Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Take(ctx context.Context, id string) (models.IntakeRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.IntakeRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return models.IntakeRecord{}, ErrNotFound
	}
	delete(s.entries, id)
	if s.now().After(e.expires) {
		return models.IntakeRecord{}, ErrNotFound
	}
	return e.record, nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
