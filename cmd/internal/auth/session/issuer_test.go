package session

import (
	"context"
	"errors"
	"testing"

	"sessiond/cmd/security/token"
)

func TestIssuer_IssueWritesOneOutstandingRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	h := newHarness(t, testConfig(), store)

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if p.AccessJTI == "" || p.RefreshJTI == "" || p.AccessJTI == p.RefreshJTI {
		t.Fatalf("expected distinct jtis, got access=%q refresh=%q", p.AccessJTI, p.RefreshJTI)
	}
	if !p.AccessExp.Before(p.RefreshExp) {
		t.Fatalf("expected access to expire before refresh")
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one outstanding record, got %d", store.Len())
	}

	rec, err := store.GetOutstanding(ctx, p.RefreshJTI)
	if err != nil {
		t.Fatalf("GetOutstanding: %v", err)
	}
	if rec.Subject != "U1" || !rec.ExpiresAt.Equal(p.RefreshExp) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	access, err := h.codec.Decode(p.AccessToken)
	if err != nil || access.Type != token.TypeAccess || access.JTI != p.AccessJTI {
		t.Fatalf("access token mismatch: %+v err=%v", access, err)
	}
	refresh, err := h.codec.Decode(p.RefreshToken)
	if err != nil || refresh.Type != token.TypeRefresh || refresh.JTI != p.RefreshJTI {
		t.Fatalf("refresh token mismatch: %+v err=%v", refresh, err)
	}

	if h.metrics.issued != 1 {
		t.Fatalf("expected issued counter 1, got %d", h.metrics.issued)
	}
}

func TestIssuer_StoreFailureReturnsNoTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := &failingStore{Store: NewMemoryStore(), failPut: true}
	h := newHarness(t, testConfig(), fs)

	p, err := h.issuer.Issue(ctx, "U1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if p.AccessToken != "" || p.RefreshToken != "" {
		t.Fatalf("expected no tokens on store failure")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "put_outstanding" {
		t.Fatalf("expected StoreError for put_outstanding, got %#v", err)
	}
}

func TestIssuer_RejectsEmptySubject(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig(), NewMemoryStore())
	if _, err := h.issuer.Issue(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestIssuer_StoreTimeoutApplied(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	h := newHarness(t, cfg, &deadlineStore{Store: NewMemoryStore(), t: t})
	if _, err := h.issuer.Issue(context.Background(), "U1"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
}

// deadlineStore asserts that every write carries a deadline.
type deadlineStore struct {
	Store
	t *testing.T
}

func (s *deadlineStore) PutOutstanding(ctx context.Context, rec OutstandingRecord) error {
	if _, ok := ctx.Deadline(); !ok {
		s.t.Errorf("PutOutstanding called without deadline")
	}
	return s.Store.PutOutstanding(ctx, rec)
}
