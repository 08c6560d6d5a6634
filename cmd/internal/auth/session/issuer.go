package session

import (
	"context"
	"strings"
	"time"

	"sessiond/cmd/security/token"
)

// Pair is the result of issuing or rotating credentials.
type Pair struct {
	AccessToken string
	AccessJTI   string
	AccessExp   time.Time

	RefreshToken string
	RefreshJTI   string
	RefreshExp   time.Time

	// Rotated is false when a non-rotating refresh returned the presented refresh token.
	Rotated bool
}

// Issuer mints access/refresh pairs for an authenticated subject.
type Issuer struct {
	cfg   Config
	codec *token.Codec
	store Store
	opts  options
}

// NewIssuer constructs an Issuer.
func NewIssuer(cfg Config, codec *token.Codec, store Store, opts ...Option) *Issuer {
	return &Issuer{cfg: cfg, codec: codec, store: store, opts: buildOptions(opts)}
}

// Issue mints a fresh pair for subject and records the refresh token as outstanding.
//
// On store failure no tokens are returned and the error wraps ErrStoreUnavailable.
func (i *Issuer) Issue(ctx context.Context, subject string) (Pair, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Pair{}, token.ErrInvalidClaims
	}

	now := i.codec.Now()

	access, accessJTI, accessExp, err := i.mintAccess(subject, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, rec, err := i.mintRefresh(subject, now)
	if err != nil {
		return Pair{}, err
	}

	sctx, cancel := withStoreTimeout(ctx, i.cfg.StoreTimeout)
	defer cancel()
	if err := i.store.PutOutstanding(sctx, rec); err != nil {
		i.opts.metrics.StoreError("put_outstanding")
		return Pair{}, storeErr("put_outstanding", err)
	}

	i.opts.metrics.TokensIssued()

	return Pair{
		AccessToken:  access,
		AccessJTI:    accessJTI,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshJTI:   rec.JTI,
		RefreshExp:   rec.ExpiresAt,
		Rotated:      true,
	}, nil
}

func (i *Issuer) mintAccess(subject string, now time.Time) (string, string, time.Time, error) {
	jti := i.opts.newJTI()
	exp := now.Add(i.cfg.AccessTTL)
	s, err := i.codec.Encode(token.Claims{
		Subject:   subject,
		Type:      token.TypeAccess,
		JTI:       jti,
		IssuedAt:  now,
		ExpiresAt: exp,
	})
	if err != nil {
		return "", "", time.Time{}, err
	}
	return s, jti, exp, nil
}

func (i *Issuer) mintRefresh(subject string, now time.Time) (string, OutstandingRecord, error) {
	rec := OutstandingRecord{
		JTI:       i.opts.newJTI(),
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.cfg.RefreshTTL),
	}
	s, err := i.codec.Encode(token.Claims{
		Subject:   rec.Subject,
		Type:      token.TypeRefresh,
		JTI:       rec.JTI,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		return "", OutstandingRecord{}, err
	}
	return s, rec, nil
}
