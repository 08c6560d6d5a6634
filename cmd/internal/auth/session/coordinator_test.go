package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCoordinator_LoginRotateReuseLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, testConfig(), NewMemoryStore())

	// Login.
	p1, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Refresh with R1 succeeds and blacklists it.
	h.clock.Advance(time.Minute)
	p2, err := h.coordinator.Rotate(ctx, p1.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate(R1): %v", err)
	}
	if !p2.Rotated || p2.RefreshJTI == p1.RefreshJTI || p2.RefreshToken == p1.RefreshToken {
		t.Fatalf("expected a new refresh token, got %+v", p2)
	}
	if ok, _ := h.store.IsBlacklisted(ctx, p1.RefreshJTI); !ok {
		t.Fatalf("expected R1 blacklisted after rotation")
	}

	// Replay of R1 is reuse.
	if _, err := h.coordinator.Rotate(ctx, p1.RefreshToken); !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("expected ErrRefreshReused for R1 replay, got %v", err)
	}

	// Logout with R2 blacklists it.
	if err := h.coordinator.Revoke(ctx, p2.RefreshToken); err != nil {
		t.Fatalf("Revoke(R2): %v", err)
	}
	if _, err := h.coordinator.Rotate(ctx, p2.RefreshToken); !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("expected ErrRefreshReused for R2 after logout, got %v", err)
	}

	// Access tokens stay valid until expiry (not revocable).
	if _, err := h.validator.ValidateAccess(ctx, p2.AccessToken); err != nil {
		t.Fatalf("expected A2 still valid after logout, got %v", err)
	}

	if got := h.metrics.result(ResultReused); got != 2 {
		t.Fatalf("expected 2 reused results, got %d", got)
	}
}

func TestCoordinator_ConcurrentRotationSingleWinner(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"redis":  func(t *testing.T) Store { return newMiniredisStore(t) },
	}

	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			h := newHarness(t, testConfig(), mk(t))

			p, err := h.issuer.Issue(ctx, "U1")
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}

			const n = 16
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				wins    int
				reused  int
				others  []error
				start   = make(chan struct{})
				winners []Pair
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					pair, err := h.coordinator.Rotate(ctx, p.RefreshToken)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
						winners = append(winners, pair)
					case errors.Is(err, ErrRefreshReused):
						reused++
					default:
						others = append(others, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if wins != 1 || reused != n-1 || len(others) != 0 {
				t.Fatalf("expected 1 winner and %d reused, got wins=%d reused=%d others=%v", n-1, wins, reused, others)
			}

			// The winner's refresh token is itself usable exactly once.
			if _, err := h.coordinator.Rotate(ctx, winners[0].RefreshToken); err != nil {
				t.Fatalf("Rotate(winner): %v", err)
			}
		})
	}
}

func TestCoordinator_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, testConfig(), NewMemoryStore())

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	h.clock.Advance(h.cfg.RefreshTTL + time.Second)

	if _, err := h.coordinator.Rotate(ctx, p.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}
	if _, err := h.validator.ValidateAccess(ctx, p.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired access token rejected, got %v", err)
	}
	if got := h.metrics.result(ResultExpired); got != 1 {
		t.Fatalf("expected 1 expired result, got %d", got)
	}
}

func TestCoordinator_ExpiryWithinLeeway(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig()
	cfg.Leeway = time.Minute
	h := newHarness(t, cfg, NewMemoryStore())

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	h.clock.Advance(cfg.RefreshTTL + 30*time.Second)
	if _, err := h.coordinator.Rotate(ctx, p.RefreshToken); err != nil {
		t.Fatalf("expected rotation within leeway, got %v", err)
	}
}

func TestCoordinator_ChainIntegrity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, testConfig(), NewMemoryStore())

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	chain := []Pair{p}
	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Minute)
		next, err := h.coordinator.Rotate(ctx, chain[len(chain)-1].RefreshToken)
		if err != nil {
			t.Fatalf("Rotate #%d: %v", i, err)
		}
		chain = append(chain, next)
	}

	// Only the tail is usable; every predecessor is reuse.
	for i, link := range chain[:len(chain)-1] {
		if _, err := h.coordinator.Rotate(ctx, link.RefreshToken); !errors.Is(err, ErrRefreshReused) {
			t.Fatalf("link %d: expected ErrRefreshReused, got %v", i, err)
		}
	}
	if _, err := h.coordinator.Rotate(ctx, chain[len(chain)-1].RefreshToken); err != nil {
		t.Fatalf("tail rotation: %v", err)
	}
}

func TestCoordinator_RejectsInvalidTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, testConfig(), NewMemoryStore())

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"access token": p.AccessToken,
		"tampered":     tamper(p.RefreshToken),
	}
	for name, tok := range cases {
		if _, err := h.coordinator.Rotate(ctx, tok); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("%s: expected ErrRefreshInvalid, got %v", name, err)
		}
	}

	// A correctly signed refresh token that was never recorded.
	other := newHarness(t, testConfig(), NewMemoryStore())
	foreign, err := other.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue(foreign): %v", err)
	}
	if _, err := h.coordinator.Rotate(ctx, foreign.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("unknown jti: expected ErrRefreshInvalid, got %v", err)
	}
}

func TestCoordinator_NonRotating(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig()
	cfg.RotateRefreshTokens = false
	h := newHarness(t, cfg, NewMemoryStore())

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		next, err := h.coordinator.Rotate(ctx, p.RefreshToken)
		if err != nil {
			t.Fatalf("Rotate #%d: %v", i, err)
		}
		if next.Rotated || next.RefreshToken != p.RefreshToken {
			t.Fatalf("expected refresh token echoed back, got %+v", next)
		}
		if next.AccessToken == "" || next.AccessJTI == p.AccessJTI {
			t.Fatalf("expected a fresh access token")
		}
	}

	// Logout still revokes.
	if err := h.coordinator.Revoke(ctx, p.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := h.coordinator.Rotate(ctx, p.RefreshToken); !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("expected ErrRefreshReused after logout, got %v", err)
	}
}

func TestCoordinator_StoreUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := &failingStore{Store: NewMemoryStore()}
	h := newHarness(t, testConfig(), fs)

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	fs.failGet = true
	if _, err := h.coordinator.Rotate(ctx, p.RefreshToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on get failure, got %v", err)
	}
	fs.failGet = false

	fs.failRotate = true
	_, err = h.coordinator.Rotate(ctx, p.RefreshToken)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on rotate failure, got %v", err)
	}
	if errors.Is(err, errBackendDown) {
		t.Fatalf("driver error must not be exposed through errors.Is")
	}
	fs.failRotate = false

	// The failed attempt consumed nothing.
	if _, err := h.coordinator.Rotate(ctx, p.RefreshToken); err != nil {
		t.Fatalf("expected rotation after recovery, got %v", err)
	}
}

func TestCoordinator_RevokeIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, testConfig(), NewMemoryStore())

	p, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := h.coordinator.Revoke(ctx, p.RefreshToken); err != nil {
			t.Fatalf("Revoke #%d: %v", i, err)
		}
	}

	// Expired tokens still resolve to their jti on logout.
	h.clock.Advance(h.cfg.RefreshTTL + time.Hour)
	if err := h.coordinator.Revoke(ctx, p.RefreshToken); err != nil {
		t.Fatalf("Revoke(expired): %v", err)
	}

	if err := h.coordinator.Revoke(ctx, "garbage"); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for garbage, got %v", err)
	}
}

func TestCoordinator_InactivePrincipal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lookup := staticLookup{
		"U1": {ID: "U1", Active: true},
		"U2": {ID: "U2", Active: false},
	}
	h := newHarness(t, testConfig(), NewMemoryStore(), WithPrincipalLookup(lookup))

	active, err := h.issuer.Issue(ctx, "U1")
	if err != nil {
		t.Fatalf("Issue(U1): %v", err)
	}
	inactive, err := h.issuer.Issue(ctx, "U2")
	if err != nil {
		t.Fatalf("Issue(U2): %v", err)
	}
	gone, err := h.issuer.Issue(ctx, "U3")
	if err != nil {
		t.Fatalf("Issue(U3): %v", err)
	}

	if _, err := h.coordinator.Rotate(ctx, active.RefreshToken); err != nil {
		t.Fatalf("active principal: %v", err)
	}
	if _, err := h.coordinator.Rotate(ctx, inactive.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("inactive principal: expected ErrRefreshInvalid, got %v", err)
	}
	if _, err := h.coordinator.Rotate(ctx, gone.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("missing principal: expected ErrRefreshInvalid, got %v", err)
	}
}
