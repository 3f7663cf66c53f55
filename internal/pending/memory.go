package pending

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zainahstore/api/internal/domain"
)

// MemoryStore keeps staged drafts in process memory. Entries carry an expiry
// checked lazily on read; a periodic CleanupExpired pass removes the rest.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]entry
}

type entry struct {
	draft     domain.DraftOrder
	expiresAt time.Time
}

// NewMemoryStore constructs an empty memory-backed draft store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]entry)}
}

// Put implements the Store interface.
func (s *MemoryStore) Put(_ context.Context, draft domain.DraftOrder, now time.Time, ttl time.Duration) error {
	reference := strings.TrimSpace(draft.ReferenceID)
	if reference == "" {
		return ErrEmptyReference
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.drafts[reference] = entry{draft: draft, expiresAt: now.Add(ttl)}
	return nil
}

// Get implements the Store interface. Expired drafts are removed and reported
// as missing.
func (s *MemoryStore) Get(_ context.Context, referenceID string, now time.Time) (domain.DraftOrder, error) {
	reference := strings.TrimSpace(referenceID)
	if reference == "" {
		return domain.DraftOrder{}, ErrEmptyReference
	}
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.drafts[reference]
	if !ok {
		return domain.DraftOrder{}, ErrNotFound
	}
	if !item.expiresAt.IsZero() && !now.Before(item.expiresAt) {
		delete(s.drafts, reference)
		return domain.DraftOrder{}, ErrNotFound
	}
	return item.draft, nil
}

// Delete implements the Store interface. Deleting a missing draft is a no-op.
func (s *MemoryStore) Delete(_ context.Context, referenceID string) error {
	reference := strings.TrimSpace(referenceID)
	if reference == "" {
		return ErrEmptyReference
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, reference)
	return nil
}

// CleanupExpired implements the Store interface.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.drafts) {
		limit = len(s.drafts)
	}

	removed := 0
	for reference, item := range s.drafts {
		if item.expiresAt.IsZero() || now.Before(item.expiresAt) {
			continue
		}
		delete(s.drafts, reference)
		removed++
		if removed >= limit {
			break
		}
	}

	return removed, nil
}

// Len reports the number of drafts currently staged, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}
