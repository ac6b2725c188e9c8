package dedup

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	committed bool
	expiresAt time.Time
}

// MemoryStore is a process-local Store. It is only correct for a single
// instance; deployments with more replicas use RedisStore.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl, pendingTTL time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pendingTTL <= 0 || pendingTTL > ttl {
		pendingTTL = ttl
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Reserve(_ context.Context, eventID string) (bool, error) {
	eventID = normalizeEventID(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[eventID]; ok && now.Before(entry.expiresAt) {
		return false, nil
	}
	s.entries[eventID] = memoryEntry{expiresAt: now.Add(s.pendingTTL)}
	return true, nil
}

func (s *MemoryStore) Commit(_ context.Context, eventID string) error {
	eventID = normalizeEventID(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[eventID] = memoryEntry{committed: true, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, eventID string) error {
	eventID = normalizeEventID(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[eventID]; ok && !entry.committed {
		delete(s.entries, eventID)
	}
	return nil
}

// PurgeExpired evicts ids past their TTL and reports how many were removed.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many ids are currently tracked, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
