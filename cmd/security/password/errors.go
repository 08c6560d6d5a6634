package password

import "errors"

// Errors returned by Hash, Validate and Verify.
var (
	ErrPasswordTooShort = errors.New("password: too short")
	ErrPasswordTooLong  = errors.New("password: too long")
	ErrWeakPassword     = errors.New("password: too weak")
	ErrInvalidHash      = errors.New("password: invalid hash")
)
