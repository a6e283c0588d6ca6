package refresh

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = 128

// MemoryStore is an in-process [Store]. Consumed records are kept until they
// expire so a replayed token still reports [ErrAlreadyConsumed]; expired
// records are dropped when read and swept every pruneEvery puts.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	owners  map[string]map[string]struct{}
	now     func() time.Time
	puts    int
}

// NewMemoryStore creates an empty [MemoryStore]. now is the clock Get checks
// expiry against; a nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		records: make(map[string]*Record),
		owners:  make(map[string]map[string]struct{}),
		now:     now,
	}
}

// Put implements [Store].
func (s *MemoryStore) Put(_ context.Context, rec Record, now time.Time) error {
	if !now.Before(rec.ExpiresAt) {
		return ErrExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++
	if s.puts%pruneEvery == 0 {
		s.pruneLocked(now)
	}

	if _, exists := s.records[rec.Ref]; exists {
		return ErrDuplicate
	}
	cp := rec
	s.records[rec.Ref] = &cp

	refs, ok := s.owners[rec.OwnerID]
	if !ok {
		refs = make(map[string]struct{})
		s.owners[rec.OwnerID] = refs
	}
	refs[rec.Ref] = struct{}{}
	return nil
}

// Get implements [Store]. A record past its expiry at the time of the read
// is deleted and reported as [ErrNotFound].
func (s *MemoryStore) Get(_ context.Context, ref string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ref]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !s.now().Before(rec.ExpiresAt) {
		s.deleteLocked(rec)
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

// Consume implements [Store].
func (s *MemoryStore) Consume(_ context.Context, ref string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ref]
	if !ok {
		return ErrNotFound
	}
	if rec.Consumed {
		return ErrAlreadyConsumed
	}
	if !now.Before(rec.ExpiresAt) {
		s.deleteLocked(rec)
		return ErrNotFound
	}
	rec.Consumed = true
	return nil
}

// ConsumeAll implements [Store]. Expired records of the owner are dropped.
func (s *MemoryStore) ConsumeAll(_ context.Context, ownerID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for ref := range s.owners[ownerID] {
		rec := s.records[ref]
		if rec == nil {
			continue
		}
		if !now.Before(rec.ExpiresAt) {
			s.deleteLocked(rec)
			continue
		}
		if !rec.Consumed {
			rec.Consumed = true
			revoked++
		}
	}
	return revoked, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for _, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			s.deleteLocked(rec)
		}
	}
}

func (s *MemoryStore) deleteLocked(rec *Record) {
	delete(s.records, rec.Ref)
	if refs, ok := s.owners[rec.OwnerID]; ok {
		delete(refs, rec.Ref)
		if len(refs) == 0 {
			delete(s.owners, rec.OwnerID)
		}
	}
}
