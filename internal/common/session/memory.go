package session

import (
	"context"
	"sync"
	"time"

	"agentic-assistant/internal/common/metrics"
	"agentic-assistant/internal/models"
)

// MemoryStore keeps pending requests in process memory. Expired entries are dropped lazily on Take
// and swept on Put.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]models.PendingRequest
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]models.PendingRequest),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Put(ctx context.Context, pending *models.PendingRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.entries {
		if entry.IsExpired(now, s.ttl) {
			delete(s.entries, id)
		}
	}

	id := ensureID(pending)
	if _, exists := s.entries[id]; exists {
		metrics.SessionOperations.WithLabelValues("memory", "put", "duplicate").Inc()
		return "", ErrDuplicateRequest
	}
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = now
	}
	s.entries[id] = *pending

	metrics.SessionOperations.WithLabelValues("memory", "put", "ok").Inc()
	return id, nil
}

func (s *MemoryStore) Take(ctx context.Context, requestID string) (*models.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[requestID]
	if !ok {
		metrics.SessionOperations.WithLabelValues("memory", "take", "not_found").Inc()
		return nil, ErrSessionNotFound
	}
	delete(s.entries, requestID)

	if entry.IsExpired(s.now(), s.ttl) {
		metrics.SessionOperations.WithLabelValues("memory", "take", "expired").Inc()
		return nil, ErrSessionExpired
	}

	metrics.SessionOperations.WithLabelValues("memory", "take", "hit").Inc()
	return &entry, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
