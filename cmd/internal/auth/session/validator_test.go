package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidator_AccessTokenIsStateless(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := &failingStore{Store: NewMemoryStore()}
	h := newHarness(t, testConfig(), fs)

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Store unreachable and refresh token revoked: access token still verifies.
	if err := h.coordinator.Revoke(ctx, p.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	fs.failGet, fs.failRotate, fs.failBL, fs.failPut = true, true, true, true

	h.clock.Advance(h.cfg.AccessTTL - time.Second)
	got, err := h.validator.ValidateAccess(ctx, p.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if got.ID != "U1" || !got.Active {
		t.Fatalf("unexpected principal: %+v", got)
	}

	h.clock.Advance(2 * time.Second)
	if _, err := h.validator.ValidateAccess(ctx, p.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after expiry, got %v", err)
	}
}

func TestValidator_RejectsNonAccessTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, testConfig(), NewMemoryStore())

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, tok := range map[string]string{
		"refresh":  p.RefreshToken,
		"empty":    "",
		"garbage":  "a.b.c",
		"tampered": tamper(p.AccessToken),
	} {
		if _, err := h.validator.ValidateAccess(ctx, tok); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestValidator_PrincipalLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	errDown := errors.New("directory down")
	lookup := PrincipalLookupFunc(func(_ context.Context, id string) (Principal, error) {
		switch id {
		case "active":
			return Principal{ID: id, Active: true}, nil
		case "inactive":
			return Principal{ID: id, Active: false}, nil
		case "broken":
			return Principal{}, errDown
		default:
			return Principal{}, ErrPrincipalNotFound
		}
	})
	h := newHarness(t, testConfig(), NewMemoryStore(), WithPrincipalLookup(lookup))

	cases := []struct {
		subject string
		wantErr error
	}{
		{"active", nil},
		{"inactive", ErrUnauthenticated},
		{"deleted", ErrUnauthenticated},
		{"broken", ErrStoreUnavailable},
	}
	for _, tc := range cases {
		p, err := h.issuer.Issue(ctx, tc.subject)
		if err != nil {
			t.Fatalf("Issue(%s): %v", tc.subject, err)
		}
		_, err = h.validator.ValidateAccess(ctx, p.AccessToken)
		if tc.wantErr == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tc.subject, err)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.subject, tc.wantErr, err)
		}
	}
}
