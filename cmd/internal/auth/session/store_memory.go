package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory.
//
// It is intended for tests and single-instance development runs; state is
// lost on restart.
type MemoryStore struct {
	mu          sync.Mutex
	outstanding map[string]OutstandingRecord
	blacklisted map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		outstanding: make(map[string]OutstandingRecord),
		blacklisted: make(map[string]time.Time),
	}
}

// PutOutstanding records rec. Re-recording an existing jti is rejected.
func (s *MemoryStore) PutOutstanding(ctx context.Context, rec OutstandingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outstanding[rec.JTI]; ok {
		return errDuplicateJTI
	}
	s.outstanding[rec.JTI] = rec
	return nil
}

// GetOutstanding loads the record for jti.
func (s *MemoryStore) GetOutstanding(ctx context.Context, jti string) (OutstandingRecord, error) {
	if err := ctx.Err(); err != nil {
		return OutstandingRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.outstanding[jti]
	if !ok {
		return OutstandingRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

// Blacklist marks jti as revoked (idempotent).
func (s *MemoryStore) Blacklist(ctx context.Context, jti string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outstanding[jti]; !ok {
		return nil
	}
	if _, ok := s.blacklisted[jti]; !ok {
		s.blacklisted[jti] = now
	}
	return nil
}

// IsBlacklisted reports whether jti has been revoked.
func (s *MemoryStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.blacklisted[jti]
	return ok, nil
}

// Rotate blacklists oldJTI and records next under a single lock.
func (s *MemoryStore) Rotate(ctx context.Context, oldJTI string, next OutstandingRecord, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outstanding[oldJTI]; !ok {
		return ErrRecordNotFound
	}
	if _, ok := s.blacklisted[oldJTI]; ok {
		return ErrAlreadyBlacklisted
	}
	if _, ok := s.outstanding[next.JTI]; ok {
		return errDuplicateJTI
	}

	s.blacklisted[oldJTI] = now
	s.outstanding[next.JTI] = next
	return nil
}

// PurgeExpired removes records that expired before the cutoff.
func (s *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for jti, rec := range s.outstanding {
		if rec.ExpiresAt.Before(before) {
			delete(s.outstanding, jti)
			delete(s.blacklisted, jti)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of outstanding records. Used by tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}
