package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an access token cannot establish a principal.
	// Callers must not distinguish expired, forged or malformed tokens to clients.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrRefreshInvalid is returned for malformed, forged, unknown or wrong-type refresh tokens.
	ErrRefreshInvalid = errors.New("refresh token invalid")

	// ErrRefreshExpired is returned when a refresh token is past its expiry.
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrRefreshReused is returned when an already blacklisted refresh token is presented again.
	ErrRefreshReused = errors.New("refresh token reuse detected")

	// ErrStoreUnavailable is returned when the revocation store (or principal lookup) cannot be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Store-level outcomes. Implementations return these so the coordinator can
// classify a rotation without inspecting driver errors.
var (
	ErrRecordNotFound     = errors.New("outstanding token not found")
	ErrAlreadyBlacklisted = errors.New("token already blacklisted")

	errDuplicateJTI = errors.New("duplicate jti")
)

// StoreError reports a failed store operation. It unwraps to ErrStoreUnavailable
// only, so driver error types never cross the package boundary.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrStoreUnavailable.Error(), e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable.Error(), e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return ErrStoreUnavailable }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
