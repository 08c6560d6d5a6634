package cookies

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInsecureSameSiteNone is returned when SameSite=None is configured without Secure.
	ErrInsecureSameSiteNone = errors.New("cookies: SameSite=None requires Secure")

	// ErrInvalidPolicy is returned for empty or conflicting cookie names.
	ErrInvalidPolicy = errors.New("cookies: invalid policy")
)

// Policy describes the attributes of every cookie the transport writes.
//
// Domain, Path, SameSite and Secure are shared by all cookies so that a clear
// always matches the cookie it is meant to remove.
type Policy struct {
	AccessName  string
	RefreshName string
	CSRFName    string

	// CSRFHeader is the request header echoing the CSRF cookie value.
	CSRFHeader string

	// Domain is empty for host-only cookies.
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite

	// RefreshMaxAge is the refresh cookie lifetime (the refresh token TTL).
	RefreshMaxAge time.Duration
}

// DefaultPolicy returns development defaults (Secure=false, SameSite=Lax).
func DefaultPolicy() Policy {
	return Policy{
		AccessName:    "access_token",
		RefreshName:   "refresh_token",
		CSRFName:      "csrftoken",
		CSRFHeader:    "X-CSRF-Token",
		Path:          "/",
		SameSite:      http.SameSiteLaxMode,
		RefreshMaxAge: 7 * 24 * time.Hour,
	}
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	names := []string{p.AccessName, p.RefreshName, p.CSRFName}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return ErrInvalidPolicy
		}
		if _, dup := seen[n]; dup {
			return ErrInvalidPolicy
		}
		seen[n] = struct{}{}
	}
	if !strings.HasPrefix(p.Path, "/") {
		return ErrInvalidPolicy
	}
	if p.RefreshMaxAge <= 0 {
		return ErrInvalidPolicy
	}
	if p.SameSite == http.SameSiteNoneMode && !p.Secure {
		return ErrInsecureSameSiteNone
	}
	return nil
}

// PolicyFromEnv loads a cookie policy from SESSIOND_COOKIE_* variables.
//
// Secure defaults to true when production is set. refreshTTL becomes the
// refresh cookie Max-Age.
func PolicyFromEnv(production bool, refreshTTL time.Duration) Policy {
	p := DefaultPolicy()
	p.Secure = production
	if refreshTTL > 0 {
		p.RefreshMaxAge = refreshTTL
	}

	if v := strings.TrimSpace(os.Getenv("SESSIOND_COOKIE_ACCESS_NAME")); v != "" {
		p.AccessName = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSIOND_COOKIE_REFRESH_NAME")); v != "" {
		p.RefreshName = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSIOND_COOKIE_CSRF_NAME")); v != "" {
		p.CSRFName = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSIOND_CSRF_HEADER")); v != "" {
		p.CSRFHeader = v
	}
	p.Domain = strings.TrimSpace(os.Getenv("SESSIOND_COOKIE_DOMAIN"))
	if v := strings.TrimSpace(os.Getenv("SESSIOND_COOKIE_PATH")); v != "" {
		p.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("SESSIOND_COOKIE_SECURE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.Secure = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSIOND_COOKIE_SAMESITE")); v != "" {
		p.SameSite = ParseSameSite(v)
	}
	return p
}

// ParseSameSite maps strict|lax|none|default to http.SameSite. Unknown values yield Lax.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}
