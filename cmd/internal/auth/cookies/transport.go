// Package cookies carries session credentials between server and browser as
// HttpOnly cookies, plus a double-submit CSRF token.
package cookies

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// Transport writes and reads credential cookies according to a Policy.
type Transport struct {
	p Policy
}

// New validates p and returns a Transport.
func New(p Policy) (*Transport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Transport{p: p}, nil
}

// Policy returns a copy of the transport policy.
func (t *Transport) Policy() Policy { return t.p }

// SetPair writes both the access cookie (session lifetime) and the refresh
// cookie (Max-Age = refresh TTL).
func (t *Transport) SetPair(w http.ResponseWriter, access, refresh string) {
	t.SetAccess(w, access)
	t.setCookie(w, t.p.RefreshName, refresh, t.p.RefreshMaxAge, true)
}

// SetAccess overwrites only the access cookie.
func (t *Transport) SetAccess(w http.ResponseWriter, access string) {
	t.setCookie(w, t.p.AccessName, access, 0, true)
}

// Clear expires the access, refresh and CSRF cookies using the same Domain,
// Path, SameSite and Secure attributes they were set with.
func (t *Transport) Clear(w http.ResponseWriter) {
	t.expireCookie(w, t.p.AccessName, true)
	t.expireCookie(w, t.p.RefreshName, true)
	t.expireCookie(w, t.p.CSRFName, false)
}

// AccessToken returns the access cookie value, if present.
func (t *Transport) AccessToken(r *http.Request) (string, bool) {
	return cookieValue(r, t.p.AccessName)
}

// RefreshToken returns the refresh cookie value, if present.
func (t *Transport) RefreshToken(r *http.Request) (string, bool) {
	return cookieValue(r, t.p.RefreshName)
}

// IssueCSRF sets a fresh CSRF cookie (readable by scripts) and returns its value.
func (t *Transport) IssueCSRF(w http.ResponseWriter) (string, error) {
	v, err := newOpaqueToken(32)
	if err != nil {
		return "", err
	}
	t.setCookie(w, t.p.CSRFName, v, t.p.RefreshMaxAge, false)
	return v, nil
}

// CSRFValid reports whether the CSRF header matches the CSRF cookie.
func (t *Transport) CSRFValid(r *http.Request) bool {
	cv, ok := cookieValue(r, t.p.CSRFName)
	if !ok {
		return false
	}
	hv := strings.TrimSpace(r.Header.Get(t.p.CSRFHeader))
	return secureStringEqual(cv, hv)
}

func (t *Transport) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, httpOnly bool) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     t.p.Path,
		Domain:   t.p.Domain,
		HttpOnly: httpOnly,
		Secure:   t.p.Secure,
		SameSite: t.p.SameSite,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
	}
	http.SetCookie(w, c)
}

func (t *Transport) expireCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     t.p.Path,
		Domain:   t.p.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   t.p.Secure,
		SameSite: t.p.SameSite,
	})
}

func cookieValue(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

func newOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func secureStringEqual(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
