// Package password hashes and verifies login passwords for sessiond's
// credential verifier.
//
// It implements Argon2id hashing using a PHC-like encoded string format and includes:
// - Configurable Argon2id parameters (via SESSIOND_ARGON2_* environment variables)
// - Password policy validation applied when hashing
// - Strict hash decoding and verification with anti-DoS bounds
// - Rehash detection and a dummy verification for unknown accounts
//
// Hash strings are treated as untrusted input during Verify.
package password
