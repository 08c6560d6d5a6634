package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func withTx(ctx context.Context, db txBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOutstanding(ctx context.Context, db execer, rec OutstandingRecord) error {
	_, err := db.Exec(ctx, `
		INSERT INTO outstanding_tokens (jti, subject, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, rec.JTI, rec.Subject, rec.IssuedAt.UTC(), rec.ExpiresAt.UTC())
	if pgCode(err) == pgUniqueViolation {
		return errDuplicateJTI
	}
	return err
}

// insertBlacklist reports whether a new blacklist row was written.
func insertBlacklist(ctx context.Context, db execer, jti string, now time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO blacklisted_tokens (jti, blacklisted_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, now.UTC())
	if pgCode(err) == pgForeignKeyViolation {
		return false, ErrRecordNotFound
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
