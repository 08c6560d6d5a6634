package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"sessiond/cmd/internal/auth/session"
)

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p session.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached by RequireAuth.
func PrincipalFromContext(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(session.Principal)
	return p, ok
}

// RequireAuth validates the access token and attaches the principal to the
// request context. Failures answer 401 without saying why.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// authenticate reads the access cookie (or a bearer header for non-browser
// clients) and validates it. On failure it writes the response.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (session.Principal, bool) {
	tok, ok := h.cookies.AccessToken(r)
	if !ok {
		tok = bearerToken(r)
	}
	if tok == "" {
		writeNotAuthenticated(w)
		return session.Principal{}, false
	}

	p, err := h.validator.ValidateAccess(r.Context(), tok)
	switch {
	case err == nil:
		return p, true
	case errors.Is(err, session.ErrStoreUnavailable):
		h.log.Error("auth.validate.fail", "err", err)
		h.writeUnavailable(w)
	default:
		writeNotAuthenticated(w)
	}
	return session.Principal{}, false
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
