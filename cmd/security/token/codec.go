package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access tokens from refresh tokens.
type Type string

const (
	// TypeAccess is a short-lived credential presented on every request.
	TypeAccess Type = "access"
	// TypeRefresh is a long-lived credential used only to mint a new pair.
	TypeRefresh Type = "refresh"
)

func (t Type) valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

// Claims is the decoded, validated content of a token.
type Claims struct {
	Subject   string
	Type      Type
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Config configures a Codec.
type Config struct {
	// Key is the shared HS256 secret.
	Key []byte

	// Issuer is set as "iss" and required on decode when non-empty.
	Issuer string

	// Leeway tolerates clock skew on exp checks. Zero is the default policy.
	Leeway time.Duration

	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies tokens. It is safe for concurrent use.
type Codec struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewCodec validates cfg and builds a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	key, err := checkKey(cfg.Key, MinSigningKeyBytes)
	if err != nil {
		return nil, err
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("token: negative leeway")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	// Copy so callers cannot mutate the key after construction.
	k := make([]byte, len(key))
	copy(k, key)

	return &Codec{
		key:    k,
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
		now:    now,
	}, nil
}

// Now returns the codec clock reading. Callers minting tokens use it so that
// issuance and verification share one notion of time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Encode signs claims into a compact token string.
func (c *Codec) Encode(cl Claims) (string, error) {
	if strings.TrimSpace(cl.Subject) == "" || strings.TrimSpace(cl.JTI) == "" || !cl.Type.valid() {
		return "", ErrInvalidClaims
	}
	if cl.ExpiresAt.IsZero() || !cl.ExpiresAt.After(cl.IssuedAt) {
		return "", ErrInvalidClaims
	}

	rc := jwt.RegisteredClaims{
		Subject:   cl.Subject,
		ID:        cl.JTI,
		IssuedAt:  jwt.NewNumericDate(cl.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(cl.ExpiresAt),
	}
	if c.issuer != "" {
		rc.Issuer = c.issuer
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, wireClaims{
		TokenType:        string(cl.Type),
		RegisteredClaims: rc,
	})
	return tok.SignedString(c.key)
}

// Decode verifies the signature and expiry of s and returns its claims.
//
// Failures are reported as ErrMalformedToken, ErrSignatureInvalid or ErrTokenExpired.
// The signature is always checked before expiry, so a forged expired token is
// reported as ErrSignatureInvalid.
func (c *Codec) Decode(s string) (Claims, error) {
	return c.decode(s, true)
}

// DecodeIgnoringExpiry verifies the signature of s but accepts expired tokens.
// It exists for revocation paths (logout) where an expired token is still a
// valid reference to its jti.
func (c *Codec) DecodeIgnoringExpiry(s string) (Claims, error) {
	return c.decode(s, false)
}

func (c *Codec) decode(s string, checkExpiry bool) (Claims, error) {
	s = strings.TrimSpace(s)
	// Basic sanity bounds to avoid pathological inputs.
	if s == "" || len(s) > 4096 {
		return Claims{}, ErrMalformedToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if checkExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
		if c.leeway > 0 {
			opts = append(opts, jwt.WithLeeway(c.leeway))
		}
		if c.issuer != "" {
			opts = append(opts, jwt.WithIssuer(c.issuer))
		}
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var wc wireClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(s, &wc, func(_ *jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return Claims{}, mapParseError(err)
	}

	if !checkExpiry && c.issuer != "" && wc.Issuer != c.issuer {
		return Claims{}, ErrMalformedToken
	}

	cl := Claims{
		Subject: wc.Subject,
		Type:    Type(wc.TokenType),
		JTI:     wc.ID,
	}
	if wc.IssuedAt != nil {
		cl.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		cl.ExpiresAt = wc.ExpiresAt.Time
	}

	if cl.Subject == "" || cl.JTI == "" || !cl.Type.valid() || cl.ExpiresAt.IsZero() {
		return Claims{}, ErrMalformedToken
	}
	return cl, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrMalformedToken
	}
}
