// Package token is the token codec for sessiond.
//
// It encodes and decodes signed, tamper-evident tokens carrying a subject,
// a token type discriminator (access or refresh), a unique identifier (jti),
// and issued-at / expiry timestamps.
//
// The codec is stateless: output depends only on the signing key, the claims
// and the injected clock. Lifecycle rules (rotation, revocation) live in the
// session package.
//
// Environment:
//   - SESSIOND_SIGNING_KEY: shared HS256 secret (>= 32 bytes).
package token
