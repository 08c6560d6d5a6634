// Package session implements the credential lifecycle for sessiond.
//
// Access tokens are short-lived, self-contained and never persisted; the
// Validator checks them without touching storage. Refresh tokens are tracked
// as outstanding records in a Store and blacklisted on rotation or logout.
// The Coordinator relies on Store.Rotate being atomic so that a refresh token
// can be exchanged at most once, even under concurrent presentation.
//
// Transport (cookies, HTTP) lives in the auth/cookies and auth/api packages.
package session
