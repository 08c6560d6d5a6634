package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"sessiond/cmd/security/token"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	cfg         Config
	clock       *testClock
	codec       *token.Codec
	store       Store
	issuer      *Issuer
	validator   *Validator
	coordinator *Coordinator
	metrics     *countingMetrics
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AccessTTL = 15 * time.Minute
	cfg.RefreshTTL = 7 * 24 * time.Hour
	cfg.SigningKey = []byte(testSigningKey)
	return cfg
}

func newHarness(t *testing.T, cfg Config, store Store, opts ...Option) *harness {
	t.Helper()

	clock := newTestClock()
	codec, err := token.NewCodec(token.Config{
		Key:    cfg.SigningKey,
		Issuer: cfg.Issuer,
		Leeway: cfg.Leeway,
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	m := &countingMetrics{results: map[string]int{}}
	all := append([]Option{WithLogger(discardLogger()), WithMetrics(m)}, opts...)

	return &harness{
		cfg:         cfg,
		clock:       clock,
		codec:       codec,
		store:       store,
		issuer:      NewIssuer(cfg, codec, store, all...),
		validator:   NewValidator(cfg, codec, all...),
		coordinator: NewCoordinator(cfg, codec, store, all...),
		metrics:     m,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingMetrics struct {
	mu      sync.Mutex
	issued  int
	results map[string]int
	errors  int
}

func (m *countingMetrics) TokensIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
}

func (m *countingMetrics) RefreshResult(r string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r]++
}

func (m *countingMetrics) StoreError(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

func (m *countingMetrics) result(r string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[r]
}

// failingStore wraps a Store and fails selected operations.
type failingStore struct {
	Store
	failPut    bool
	failGet    bool
	failRotate bool
	failBL     bool
}

var errBackendDown = errors.New("backend down")

func (s *failingStore) PutOutstanding(ctx context.Context, rec OutstandingRecord) error {
	if s.failPut {
		return errBackendDown
	}
	return s.Store.PutOutstanding(ctx, rec)
}

func (s *failingStore) GetOutstanding(ctx context.Context, jti string) (OutstandingRecord, error) {
	if s.failGet {
		return OutstandingRecord{}, errBackendDown
	}
	return s.Store.GetOutstanding(ctx, jti)
}

func (s *failingStore) Rotate(ctx context.Context, oldJTI string, next OutstandingRecord, now time.Time) error {
	if s.failRotate {
		return errBackendDown
	}
	return s.Store.Rotate(ctx, oldJTI, next, now)
}

func (s *failingStore) Blacklist(ctx context.Context, jti string, now time.Time) error {
	if s.failBL {
		return errBackendDown
	}
	return s.Store.Blacklist(ctx, jti, now)
}

type staticLookup map[string]Principal

func (l staticLookup) LookupPrincipal(_ context.Context, id string) (Principal, error) {
	p, ok := l[id]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

// tamper flips one character inside the signature segment.
func tamper(s string) string {
	b := []byte(s)
	i := len(b) - 5
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
