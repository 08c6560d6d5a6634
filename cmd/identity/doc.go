// Package identity is the principal directory and credential verifier used by
// the session service.
//
// It resolves login identifiers (username or email) to users, verifies
// passwords with Argon2id, and answers principal lookups for token subjects.
// Directories are a closed set selected at startup: Postgres or in-memory.
package identity
