package session

import (
	"context"
	"errors"

	"sessiond/cmd/security/token"
)

// Coordinator exchanges refresh tokens for new pairs and revokes them on logout.
type Coordinator struct {
	cfg    Config
	codec  *token.Codec
	store  Store
	issuer *Issuer
	opts   options
}

// NewCoordinator constructs a Coordinator sharing minting logic with an Issuer
// built from the same configuration.
func NewCoordinator(cfg Config, codec *token.Codec, store Store, opts ...Option) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		codec:  codec,
		store:  store,
		issuer: NewIssuer(cfg, codec, store, opts...),
		opts:   buildOptions(opts),
	}
}

// Rotate validates a refresh token and returns a new pair.
//
// With rotation enabled the presented token is blacklisted and replaced in a
// single atomic store step, so concurrent presentations of the same token
// yield exactly one success; all others get ErrRefreshReused. With rotation
// disabled only a new access token is minted and the refresh token is echoed
// back (Pair.Rotated == false).
func (c *Coordinator) Rotate(ctx context.Context, refresh string) (Pair, error) {
	pair, err := c.rotate(ctx, refresh)
	c.opts.metrics.RefreshResult(refreshResult(err))
	return pair, err
}

func (c *Coordinator) rotate(ctx context.Context, refresh string) (Pair, error) {
	cl, err := c.codec.Decode(refresh)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return Pair{}, ErrRefreshExpired
		}
		return Pair{}, ErrRefreshInvalid
	}
	if cl.Type != token.TypeRefresh {
		return Pair{}, ErrRefreshInvalid
	}

	sctx, cancel := withStoreTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()

	rec, err := c.store.GetOutstanding(sctx, cl.JTI)
	if errors.Is(err, ErrRecordNotFound) {
		return Pair{}, ErrRefreshInvalid
	}
	if err != nil {
		c.opts.metrics.StoreError("get_outstanding")
		return Pair{}, storeErr("get_outstanding", err)
	}
	if rec.Subject != cl.Subject {
		return Pair{}, ErrRefreshInvalid
	}

	now := c.codec.Now()
	if !now.Before(rec.ExpiresAt.Add(c.cfg.Leeway)) {
		return Pair{}, ErrRefreshExpired
	}

	revoked, err := c.store.IsBlacklisted(sctx, cl.JTI)
	if err != nil {
		c.opts.metrics.StoreError("is_blacklisted")
		return Pair{}, storeErr("is_blacklisted", err)
	}
	if revoked {
		c.reuseDetected(cl)
		return Pair{}, ErrRefreshReused
	}

	if err := c.checkPrincipal(sctx, cl.Subject); err != nil {
		return Pair{}, err
	}

	access, accessJTI, accessExp, err := c.issuer.mintAccess(cl.Subject, now)
	if err != nil {
		return Pair{}, err
	}

	if !c.cfg.RotateRefreshTokens {
		return Pair{
			AccessToken:  access,
			AccessJTI:    accessJTI,
			AccessExp:    accessExp,
			RefreshToken: refresh,
			RefreshJTI:   cl.JTI,
			RefreshExp:   rec.ExpiresAt,
			Rotated:      false,
		}, nil
	}

	next, nextRec, err := c.issuer.mintRefresh(cl.Subject, now)
	if err != nil {
		return Pair{}, err
	}

	err = c.store.Rotate(sctx, cl.JTI, nextRec, now)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyBlacklisted):
		c.reuseDetected(cl)
		return Pair{}, ErrRefreshReused
	case errors.Is(err, ErrRecordNotFound):
		return Pair{}, ErrRefreshInvalid
	default:
		c.opts.metrics.StoreError("rotate")
		return Pair{}, storeErr("rotate", err)
	}

	return Pair{
		AccessToken:  access,
		AccessJTI:    accessJTI,
		AccessExp:    accessExp,
		RefreshToken: next,
		RefreshJTI:   nextRec.JTI,
		RefreshExp:   nextRec.ExpiresAt,
		Rotated:      true,
	}, nil
}

func (c *Coordinator) checkPrincipal(ctx context.Context, subject string) error {
	if c.opts.lookup == nil {
		return nil
	}
	p, err := c.opts.lookup.LookupPrincipal(ctx, subject)
	if errors.Is(err, ErrPrincipalNotFound) {
		return ErrRefreshInvalid
	}
	if err != nil {
		return storeErr("lookup_principal", err)
	}
	if !p.Active {
		return ErrRefreshInvalid
	}
	return nil
}

func (c *Coordinator) reuseDetected(cl token.Claims) {
	c.opts.log.Warn("auth.refresh.reuse_detected",
		"subject", cl.Subject,
		"jti", cl.JTI,
	)
}

// Revoke blacklists the jti carried by a refresh token (logout).
//
// Expired tokens are still accepted as a reference to their jti. Callers on
// the logout path should log and ignore the returned error.
func (c *Coordinator) Revoke(ctx context.Context, refresh string) error {
	cl, err := c.codec.DecodeIgnoringExpiry(refresh)
	if err != nil || cl.Type != token.TypeRefresh {
		return ErrRefreshInvalid
	}

	sctx, cancel := withStoreTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()

	if err := c.store.Blacklist(sctx, cl.JTI, c.codec.Now()); err != nil {
		c.opts.metrics.StoreError("blacklist")
		return storeErr("blacklist", err)
	}
	return nil
}

func refreshResult(err error) string {
	switch {
	case err == nil:
		return ResultRotated
	case errors.Is(err, ErrRefreshReused):
		return ResultReused
	case errors.Is(err, ErrRefreshExpired):
		return ResultExpired
	case errors.Is(err, ErrRefreshInvalid):
		return ResultInvalid
	default:
		return ResultError
	}
}
