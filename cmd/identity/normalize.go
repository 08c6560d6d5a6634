package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LooksLikeEmail is the login heuristic: an identifier containing '@' may
// match either an email or a username, anything else only a username.
func LooksLikeEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
