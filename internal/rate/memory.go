package rate

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = 256

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is an in-process [Store]. Expired windows are pruned
// opportunistically during increments.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	calls   int
}

// NewMemoryStore creates an empty [MemoryStore]. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     now,
	}
}

// Incr implements [Store].
func (s *MemoryStore) Incr(_ context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%pruneEvery == 0 {
		s.pruneLocked(now)
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(length)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt.Sub(now), nil
}

// Reset implements [Store].
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of tracked windows, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Prune drops every elapsed window.
func (s *MemoryStore) Prune() {
	s.mu.Lock()
	s.pruneLocked(s.now())
	s.mu.Unlock()
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
