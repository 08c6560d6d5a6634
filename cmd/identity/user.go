package identity

import (
	"context"
	"time"
)

// User is a principal known to the directory.
type User struct {
	ID           string
	Username     string
	Email        *string
	PasswordHash string
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

// CreateUserInput describes a new user. PasswordHash is an encoded Argon2id
// hash; use Authenticator.Enroll to hash a plaintext password.
type CreateUserInput struct {
	Username     string
	Email        *string
	PasswordHash string
	Active       bool
	Now          time.Time
}

// Directory stores users. Implementations must be safe for concurrent use.
type Directory interface {
	// FindByIdentifier looks a user up by username or email (case-insensitive).
	// An identifier containing '@' matches either column, otherwise only the
	// username. Returns ErrNotFound when no single user matches.
	FindByIdentifier(ctx context.Context, identifier string) (User, error)

	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (User, error)

	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) error

	Ping(ctx context.Context) error
}
