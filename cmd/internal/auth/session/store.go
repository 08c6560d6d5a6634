package session

import (
	"context"
	"time"
)

// OutstandingRecord tracks one minted refresh token. It is immutable after creation.
type OutstandingRecord struct {
	JTI       string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store abstracts persistence for refresh-token revocation state.
//
// Implementations must be safe for concurrent use. Rotate is the only
// primitive that must be atomic: for a given oldJTI at most one caller
// may ever observe a nil error.
type Store interface {
	// PutOutstanding records a freshly minted refresh token.
	PutOutstanding(ctx context.Context, rec OutstandingRecord) error

	// GetOutstanding loads an outstanding record by jti (ErrRecordNotFound if absent).
	GetOutstanding(ctx context.Context, jti string) (OutstandingRecord, error)

	// Blacklist marks jti as revoked. It is idempotent and a no-op for unknown jtis.
	Blacklist(ctx context.Context, jti string, now time.Time) error

	// IsBlacklisted reports whether jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// Rotate blacklists oldJTI and records next in one atomic step.
	// It returns ErrAlreadyBlacklisted when oldJTI was already revoked and
	// ErrRecordNotFound when oldJTI was never recorded.
	Rotate(ctx context.Context, oldJTI string, next OutstandingRecord, now time.Time) error

	// PurgeExpired deletes records (and their blacklist entries) that expired before the cutoff.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
