package memory

import (
	"context"
	"sync"
	"time"

	"devrim/internal/app/middleware"
)

// IdempotencyStore replays send/access results for TTL. Expired records are
// swept on write so a long-running dev server does not grow without bound.
type IdempotencyStore struct {
	TTL time.Duration

	mu        sync.Mutex
	items     map[string]middleware.IdempotencyRecord
	lastSweep time.Time
	now       func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{TTL: ttl, items: make(map[string]middleware.IdempotencyRecord), now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	if !ok || s.expired(rec) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	if s.TTL > 0 && s.now().Sub(s.lastSweep) >= s.TTL {
		for k, r := range s.items {
			if s.expired(r) {
				delete(s.items, k)
			}
		}
		s.lastSweep = s.now()
	}
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord) bool {
	return s.TTL > 0 && s.now().Sub(rec.OccurredAt) > s.TTL
}

func (s *IdempotencyStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
