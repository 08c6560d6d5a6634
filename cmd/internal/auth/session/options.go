package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrPrincipalNotFound is returned by PrincipalLookup implementations for unknown subjects.
var ErrPrincipalNotFound = errors.New("principal not found")

// Principal is the authenticated party a token subject resolves to.
type Principal struct {
	ID     string
	Active bool
}

// PrincipalLookup resolves a token subject to a principal.
type PrincipalLookup interface {
	LookupPrincipal(ctx context.Context, id string) (Principal, error)
}

// PrincipalLookupFunc adapts a function to PrincipalLookup.
type PrincipalLookupFunc func(ctx context.Context, id string) (Principal, error)

func (f PrincipalLookupFunc) LookupPrincipal(ctx context.Context, id string) (Principal, error) {
	return f(ctx, id)
}

// Metrics receives lifecycle counters. See NopMetrics.
type Metrics interface {
	TokensIssued()
	RefreshResult(result string)
	StoreError(op string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) TokensIssued()        {}
func (NopMetrics) RefreshResult(string) {}
func (NopMetrics) StoreError(string)    {}

// Refresh outcomes reported to Metrics.RefreshResult.
const (
	ResultRotated = "rotated"
	ResultReused  = "reused"
	ResultInvalid = "invalid"
	ResultExpired = "expired"
	ResultError   = "error"
)

// Option configures Issuer, Validator and Coordinator.
type Option func(*options)

type options struct {
	log     *slog.Logger
	metrics Metrics
	lookup  PrincipalLookup
	newJTI  func() string
}

func defaultOptions() options {
	return options{
		log:     slog.Default(),
		metrics: NopMetrics{},
		newJTI:  func() string { return ulid.Make().String() },
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithPrincipalLookup enables principal checks on validation and refresh.
func WithPrincipalLookup(l PrincipalLookup) Option {
	return func(o *options) { o.lookup = l }
}

// WithJTIGenerator overrides jti generation (tests).
func WithJTIGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newJTI = fn
		}
	}
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
