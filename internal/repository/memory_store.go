package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"solpay_gateway/internal/domain"
)

// MemoryStore holds pending payment requests for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]domain.PendingPaymentRequest
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore returns an empty store. A zero ttl keeps entries until they
// are verified.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]domain.PendingPaymentRequest),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) Put(req domain.PendingPaymentRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[req.Reference] = req
}

func (s *MemoryStore) Get(ref string) (domain.PendingPaymentRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.data[ref]
	return req, ok
}

func (s *MemoryStore) Delete(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, ref)
}

// CompareAndDelete removes the entry for expected.Reference only if it is
// still present and unchanged. Exactly one of several concurrent callers
// holding the same snapshot gets true.
func (s *MemoryStore) CompareAndDelete(expected domain.PendingPaymentRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[expected.Reference]
	if !ok || !cur.Equal(expected) {
		return false
	}
	delete(s.data, expected.Reference)
	return true
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Sweep evicts entries created more than ttl ago and returns how many were
// removed.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for ref, req := range s.data {
		if req.CreatedAt.Before(cutoff) {
			delete(s.data, ref)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on every tick until ctx is done. It returns
// immediately when expiry is disabled.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) error {
	if s.ttl <= 0 || interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("evicted expired payment requests", "count", n, "ttl", s.ttl.String())
			}
		}
	}
}
