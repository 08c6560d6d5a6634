package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"sessiond/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory implements Directory over the users table.
//
// The pgx pool is owned by the caller; the directory never closes it.
type PostgresDirectory struct {
	pool *pgxpool.Pool
	ids  *ids.Generator
}

// NewPostgresDirectory returns a directory backed by pool.
func NewPostgresDirectory(pool *pgxpool.Pool) (*PostgresDirectory, error) {
	if pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return &PostgresDirectory{pool: pool, ids: ids.NewGenerator()}, nil
}

const userColumns = `id, username, email, password_hash, is_active, last_login_at, created_at`

func (d *PostgresDirectory) FindByIdentifier(ctx context.Context, identifier string) (User, error) {
	const op = "identity.FindByIdentifier"

	key := NormalizeUsername(identifier)
	if key == "" {
		return User{}, invalid(op, "empty identifier")
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = $1 LIMIT 2`
	if LooksLikeEmail(identifier) {
		q = `SELECT ` + userColumns + ` FROM users
		      WHERE lower(email) = $1 OR lower(username) = $1
		      LIMIT 2`
	}

	rows, err := d.pool.Query(ctx, q, key)
	if err != nil {
		return User{}, err
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return User{}, err
	}
	if len(users) != 1 {
		// Zero or ambiguous matches are both a miss.
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return users[0], nil
}

func (d *PostgresDirectory) GetByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	rows, err := d.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return User{}, err
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

func (d *PostgresDirectory) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, invalid(op, "username is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "password hash is required")
	}
	email := trimPtr(in.Email)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := d.ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	_, err = d.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, username, email, in.PasswordHash, in.Active, now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Active:       in.Active,
		CreatedAt:    now,
	}, nil
}

func (d *PostgresDirectory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return d.exec(ctx, "identity.TouchLastLogin", `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
}

func (d *PostgresDirectory) SetPasswordHash(ctx context.Context, id, hash string) error {
	if strings.TrimSpace(hash) == "" {
		return invalid("identity.SetPasswordHash", "password hash is required")
	}
	return d.exec(ctx, "identity.SetPasswordHash", `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (d *PostgresDirectory) SetActive(ctx context.Context, id string, active bool) error {
	return d.exec(ctx, "identity.SetActive", `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
}

func (d *PostgresDirectory) Ping(ctx context.Context) error { return d.pool.Ping(ctx) }

func (d *PostgresDirectory) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Active,
		&u.LastLoginAt,
		&u.CreatedAt,
	)
	return u, err
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case strings.Contains(c, "username"):
		return "username", true
	case strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
