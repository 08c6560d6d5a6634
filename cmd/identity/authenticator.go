package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sessiond/cmd/security/password"
)

// Authenticator verifies login credentials against a Directory.
type Authenticator struct {
	dir    Directory
	pw     password.Config
	now    func() time.Time
	log    *slog.Logger
	rehash bool
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithClock overrides the time source used for last-login stamps.
func WithClock(now func() time.Time) AuthOption {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) AuthOption {
	return func(a *Authenticator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithRehashOnLogin upgrades stored hashes weaker than the configured
// Argon2id parameters after a successful login.
func WithRehashOnLogin(enabled bool) AuthOption {
	return func(a *Authenticator) { a.rehash = enabled }
}

// NewAuthenticator returns an Authenticator over dir using pw for hashing.
func NewAuthenticator(dir Directory, pw password.Config, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		dir: dir,
		pw:  pw,
		now: func() time.Time { return time.Now().UTC() },
		log: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Directory returns the underlying directory.
func (a *Authenticator) Directory() Directory { return a.dir }

// Enroll hashes plaintext under the password policy and creates an active user.
func (a *Authenticator) Enroll(ctx context.Context, username string, email *string, plaintext string) (User, error) {
	const op = "identity.Enroll"

	hash, err := a.pw.Hash(plaintext)
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}
	return a.dir.CreateUser(ctx, CreateUserInput{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Now:          a.now(),
	})
}

// Authenticate resolves identifier to a user and verifies plaintext.
//
// Unknown identifiers and wrong passwords both return ErrInvalidCredentials;
// an unknown identifier still pays for one hash computation. A correct
// password on an inactive account returns ErrNotActive. Any other error comes
// from the directory backend.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, plaintext string) (User, error) {
	const op = "identity.Authenticate"

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plaintext == "" {
		return User{}, invalid(op, "identifier and password are required")
	}

	u, err := a.dir.FindByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFound(err) {
			a.pw.VerifyDummy(plaintext)
			return User{}, badCredentials()
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := a.pw.Verify(u.PasswordHash, plaintext)
	if err != nil {
		a.log.Warn("identity.password.invalid_hash", "user_id", u.ID, "err", err)
		return User{}, badCredentials()
	}
	if !ok {
		return User{}, badCredentials()
	}

	if !u.Active {
		return User{}, OpError{Op: op, Kind: ErrNotActive, Msg: "account disabled"}
	}

	if a.rehash && a.pw.NeedsRehash(u.PasswordHash) {
		a.upgradeHash(ctx, u.ID, plaintext)
	}

	at := a.now()
	if err := a.dir.TouchLastLogin(ctx, u.ID, at); err != nil {
		a.log.Warn("identity.last_login.fail", "user_id", u.ID, "err", err)
	} else {
		u.LastLoginAt = &at
	}

	return u, nil
}

func (a *Authenticator) upgradeHash(ctx context.Context, id, plaintext string) {
	hash, err := a.pw.Hash(plaintext)
	if err != nil {
		// Legacy passwords may predate the current policy.
		a.log.Debug("identity.rehash.skip", "user_id", id, "err", err)
		return
	}
	if err := a.dir.SetPasswordHash(ctx, id, hash); err != nil {
		a.log.Warn("identity.rehash.fail", "user_id", id, "err", err)
	}
}
