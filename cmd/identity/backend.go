package identity

import (
	"context"
	"fmt"
	"strings"

	"sessiond/cmd/security/password"
)

// Backend selects the Directory implementation.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// ParseBackend accepts postgres|memory (case-insensitive). Empty means memory.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendPostgres:
		return BackendPostgres, nil
	case BackendMemory, "":
		return BackendMemory, nil
	default:
		return "", OpError{Op: "identity.ParseBackend", Kind: ErrInvalidInput, Msg: fmt.Sprintf("unknown backend %q", s)}
	}
}

// DevUser is a development account seeded into a MemoryDirectory.
type DevUser struct {
	Username string
	Password string
}

// ParseDevUsers parses "alice:pw1,bob:pw2". Passwords may contain ':'.
func ParseDevUsers(s string) ([]DevUser, error) {
	const op = "identity.ParseDevUsers"

	var out []DevUser
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, pw, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || pw == "" {
			return nil, invalid(op, fmt.Sprintf("malformed entry %q", name))
		}
		out = append(out, DevUser{Username: name, Password: pw})
	}
	return out, nil
}

// SeedDevUsers creates active users in dir. Development passwords bypass the
// length policy but are still stored as Argon2id hashes.
func SeedDevUsers(ctx context.Context, dir Directory, pw password.Config, users []DevUser) error {
	relaxed := pw
	relaxed.Policy.MinLength = 1
	relaxed.Policy.RejectVeryWeak = false

	for _, du := range users {
		hash, err := relaxed.Hash(du.Password)
		if err != nil {
			return fmt.Errorf("identity: seed %q: %w", du.Username, err)
		}
		var email *string
		if LooksLikeEmail(du.Username) {
			e := du.Username
			email = &e
		}
		if _, err := dir.CreateUser(ctx, CreateUserInput{
			Username:     du.Username,
			Email:        email,
			PasswordHash: hash,
			Active:       true,
		}); err != nil && !IsConflict(err) {
			return fmt.Errorf("identity: seed %q: %w", du.Username, err)
		}
	}
	return nil
}
