package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL
// (outstanding_tokens + blacklisted_tokens).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed revocation store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// PutOutstanding inserts a new outstanding record.
func (s *PostgresStore) PutOutstanding(ctx context.Context, rec OutstandingRecord) error {
	return insertOutstanding(ctx, s.pool, rec)
}

// GetOutstanding loads an outstanding record by jti.
func (s *PostgresStore) GetOutstanding(ctx context.Context, jti string) (OutstandingRecord, error) {
	var rec OutstandingRecord

	err := s.pool.QueryRow(ctx, `
		SELECT jti, subject, issued_at, expires_at
		FROM outstanding_tokens
		WHERE jti = $1
	`, jti).Scan(&rec.JTI, &rec.Subject, &rec.IssuedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutstandingRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return OutstandingRecord{}, err
	}

	return rec, nil
}

// Blacklist revokes jti (idempotent). Unknown jtis are ignored.
func (s *PostgresStore) Blacklist(ctx context.Context, jti string, now time.Time) error {
	_, err := insertBlacklist(ctx, s.pool, jti, now)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	return err
}

// IsBlacklisted reports whether jti has a blacklist entry.
func (s *PostgresStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE jti = $1)
	`, jti).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Rotate blacklists oldJTI and inserts next inside one transaction.
//
// The blacklist primary key serializes concurrent rotations of the same jti:
// the loser's INSERT ... ON CONFLICT DO NOTHING affects zero rows (after
// waiting for the winner to commit) and the transaction is rolled back.
func (s *PostgresStore) Rotate(ctx context.Context, oldJTI string, next OutstandingRecord, now time.Time) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		inserted, err := insertBlacklist(ctx, tx, oldJTI, now)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrAlreadyBlacklisted
		}
		return insertOutstanding(ctx, tx, next)
	})
}

// PurgeExpired deletes expired outstanding rows; blacklist rows cascade.
func (s *PostgresStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM outstanding_tokens
		WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping checks pool connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
