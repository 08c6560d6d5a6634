package identity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/password"
)

func cheapPassword() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newTestAuthenticator(t *testing.T, opts ...AuthOption) (*Authenticator, *MemoryDirectory) {
	t.Helper()
	dir := NewMemoryDirectory()
	base := []AuthOption{
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}
	return NewAuthenticator(dir, cheapPassword(), append(base, opts...)...), dir
}

func strPtr(s string) *string { return &s }

func TestAuthenticate_UsernameAndEmail(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthenticator(t)

	u, err := a.Enroll(ctx, "Alice", strPtr("Alice@Example.com"), "correct horse battery")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	for _, ident := range []string{"alice", "ALICE", "  alice ", "alice@example.com", "ALICE@EXAMPLE.COM"} {
		got, err := a.Authenticate(ctx, ident, "correct horse battery")
		if err != nil {
			t.Fatalf("Authenticate(%q): %v", ident, err)
		}
		if got.ID != u.ID {
			t.Fatalf("Authenticate(%q): id %q != %q", ident, got.ID, u.ID)
		}
		if got.LastLoginAt == nil || !got.LastLoginAt.Equal(time.Unix(1_700_000_000, 0).UTC()) {
			t.Fatalf("expected last login stamped, got %v", got.LastLoginAt)
		}
	}
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthenticator(t)

	if _, err := a.Enroll(ctx, "bob", nil, "correct horse battery"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	_, wrongPw := a.Authenticate(ctx, "bob", "wrong password here")
	_, unknown := a.Authenticate(ctx, "nobody", "correct horse battery")

	for name, err := range map[string]error{"wrong password": wrongPw, "unknown user": unknown} {
		if !IsInvalidCredentials(err) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("expected identical messages, got %q and %q", wrongPw, unknown)
	}
}

func TestAuthenticate_EmptyInput(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	if _, err := a.Authenticate(context.Background(), " ", "x"); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := a.Authenticate(context.Background(), "bob", ""); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAuthenticate_InactiveRejected(t *testing.T) {
	ctx := context.Background()
	a, dir := newTestAuthenticator(t)

	u, err := a.Enroll(ctx, "carol", nil, "correct horse battery")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := dir.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	if _, err := a.Authenticate(ctx, "carol", "correct horse battery"); !IsNotActive(err) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	// Wrong password on an inactive account does not reveal the account state.
	if _, err := a.Authenticate(ctx, "carol", "wrong password here"); !IsInvalidCredentials(err) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_RehashOnLogin(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	weak := cheapPassword()
	weakHash, err := weak.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u, err := dir.CreateUser(ctx, CreateUserInput{Username: "dave", PasswordHash: weakHash, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	stronger := cheapPassword()
	stronger.Params.Iterations = 2
	a := NewAuthenticator(dir, stronger, WithRehashOnLogin(true))

	if _, err := a.Authenticate(ctx, "dave", "correct horse battery"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	got, err := dir.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PasswordHash == weakHash {
		t.Fatalf("expected hash upgraded")
	}
	if stronger.NeedsRehash(got.PasswordHash) {
		t.Fatalf("expected upgraded hash to satisfy current params")
	}
}

type failingDirectory struct {
	*MemoryDirectory
	err error
}

func (d failingDirectory) FindByIdentifier(context.Context, string) (User, error) {
	return User{}, d.err
}

func (d failingDirectory) TouchLastLogin(context.Context, string, time.Time) error {
	return d.err
}

func TestAuthenticate_BackendErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	a := NewAuthenticator(failingDirectory{MemoryDirectory: NewMemoryDirectory(), err: boom}, cheapPassword())

	_, err := a.Authenticate(context.Background(), "erin", "correct horse battery")
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if IsInvalidCredentials(err) {
		t.Fatalf("backend failure must not look like bad credentials")
	}
}

func TestPrincipals_Lookup(t *testing.T) {
	ctx := context.Background()
	a, dir := newTestAuthenticator(t)

	u, err := a.Enroll(ctx, "frank", nil, "correct horse battery")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	lookup := Principals{Dir: dir}
	p, err := lookup.LookupPrincipal(ctx, u.ID)
	if err != nil {
		t.Fatalf("LookupPrincipal: %v", err)
	}
	if p.ID != u.ID || !p.Active {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if _, err := lookup.LookupPrincipal(ctx, "missing"); !errors.Is(err, session.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}

	if err := dir.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	p, err = lookup.LookupPrincipal(ctx, u.ID)
	if err != nil {
		t.Fatalf("LookupPrincipal: %v", err)
	}
	if p.Active {
		t.Fatalf("expected inactive principal")
	}
}
