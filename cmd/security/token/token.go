package token

import (
	"os"
	"strings"
)

const (
	// SigningKeyEnv is the env var name for the shared signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SigningKeyEnv = "SESSIOND_SIGNING_KEY"

	// MinSigningKeyBytes is the minimum accepted HS256 secret length.
	MinSigningKeyBytes = 32
)

// SigningKeyFromEnv returns the configured signing key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrSigningKeyMissing.
// If too short -> ErrSigningKeyTooShort.
func SigningKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(SigningKeyEnv))
	if raw == "" {
		return nil, ErrSigningKeyMissing
	}
	return checkKey([]byte(raw), minBytes)
}

func checkKey(b []byte, minBytes int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrSigningKeyMissing
	}
	// Measured in bytes, not runes: the key is used as raw bytes.
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSigningKeyTooShort
	}
	return b, nil
}
