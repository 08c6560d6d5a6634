package session

import (
	"context"
	"errors"
	"time"

	"sessiond/cmd/security/token"
)

// Validator authenticates requests from their access token.
//
// It never consults the revocation store: an access token stays valid until
// its expiry even after logout or rotation.
type Validator struct {
	codec   *token.Codec
	opts    options
	timeout time.Duration
}

// NewValidator constructs a Validator. cfg.StoreTimeout bounds principal lookups.
func NewValidator(cfg Config, codec *token.Codec, opts ...Option) *Validator {
	return &Validator{codec: codec, opts: buildOptions(opts), timeout: cfg.StoreTimeout}
}

// ValidateAccess decodes tok and resolves its principal.
//
// Every codec failure (malformed, forged, expired) and wrong token type maps to
// ErrUnauthenticated. A missing or inactive principal is also ErrUnauthenticated;
// lookup infrastructure failures wrap ErrStoreUnavailable.
func (v *Validator) ValidateAccess(ctx context.Context, tok string) (Principal, error) {
	cl, err := v.codec.Decode(tok)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	if cl.Type != token.TypeAccess {
		return Principal{}, ErrUnauthenticated
	}

	if v.opts.lookup == nil {
		return Principal{ID: cl.Subject, Active: true}, nil
	}

	lctx, cancel := withStoreTimeout(ctx, v.timeout)
	defer cancel()

	p, err := v.opts.lookup.LookupPrincipal(lctx, cl.Subject)
	if errors.Is(err, ErrPrincipalNotFound) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, storeErr("lookup_principal", err)
	}
	if !p.Active {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}
