package token

import "errors"

// Public, stable errors for callers.
var (
	// ErrMalformedToken is returned when a token cannot be parsed or lacks required claims.
	ErrMalformedToken = errors.New("malformed token")
	// ErrSignatureInvalid is returned when the signature or signing method does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned when a well-formed, correctly signed token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidClaims is returned by Encode for incomplete claims.
	ErrInvalidClaims = errors.New("invalid token claims")

	ErrSigningKeyMissing  = errors.New("token signing key missing")
	ErrSigningKeyTooShort = errors.New("token signing key too short")
)
