package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/cookies"
	"sessiond/cmd/internal/auth/session"
)

// Authenticator verifies login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (identity.User, error)
}

// Users resolves an authenticated principal to its profile.
type Users interface {
	GetByID(ctx context.Context, id string) (identity.User, error)
}

// LoginMetrics receives login outcomes ("success", "invalid", "inactive",
// "rate_limited", "error").
type LoginMetrics interface {
	LoginResult(result string)
}

type nopLoginMetrics struct{}

func (nopLoginMetrics) LoginResult(string) {}

// Deps are the collaborators a Handler needs. All are required.
type Deps struct {
	Auth        Authenticator
	Users       Users
	Issuer      *session.Issuer
	Validator   *session.Validator
	Coordinator *session.Coordinator
	Cookies     *cookies.Transport
}

// Handler wires HTTP auth endpoints to the session lifecycle.
type Handler struct {
	log *slog.Logger
	cfg Config

	auth      Authenticator
	users     Users
	issuer    *session.Issuer
	validator *session.Validator
	coord     *session.Coordinator
	cookies   *cookies.Transport

	limiter *ipLimiter
	metrics LoginMetrics
	now     func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLoginMetrics sets the login metrics sink.
func WithLoginMetrics(m LoginMetrics) HandlerOption {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithClock overrides the clock used for login throttling.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, deps Deps, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if deps.Auth == nil || deps.Users == nil || deps.Issuer == nil ||
		deps.Validator == nil || deps.Coordinator == nil || deps.Cookies == nil {
		return nil, errors.New("auth: missing handler dependency")
	}

	cfg = cfg.withDefaults()
	h := &Handler{
		log:       log,
		cfg:       cfg,
		auth:      deps.Auth,
		users:     deps.Users,
		issuer:    deps.Issuer,
		validator: deps.Validator,
		coord:     deps.Coordinator,
		cookies:   deps.Cookies,
		limiter:   newIPLimiter(cfg.LoginIPMax, cfg.LoginIPWindow),
		metrics:   nopLoginMetrics{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/verify", h.handleVerify)
	mux.HandleFunc("/auth/csrf", h.handleCSRF)
	mux.Handle("/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identifier and password are required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	if ok, retryAfter := h.limiter.allow(ip, h.now()); !ok {
		h.auditLoginRateLimited(ctx, ip, ua, retryAfter)
		h.metrics.LoginResult("rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	user, err := h.auth.Authenticate(ctx, identifier, req.Password)
	switch {
	case err == nil:
	case identity.IsNotActive(err):
		h.auditLoginFailed(ctx, ip, ua, identifier, "not_active")
		h.metrics.LoginResult("inactive")
		writeError(w, http.StatusUnauthorized, "account_disabled", "account is disabled")
		return
	case identity.IsInvalidCredentials(err), identity.IsInvalidInput(err):
		h.auditLoginFailed(ctx, ip, ua, identifier, "invalid_credentials")
		h.metrics.LoginResult("invalid")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	default:
		h.log.Error("auth.login.fail", "err", err)
		h.metrics.LoginResult("error")
		h.writeUnavailable(w)
		return
	}

	pair, err := h.issuer.Issue(ctx, user.ID)
	if err != nil {
		h.metrics.LoginResult("error")
		h.writeSessionError(w, "auth.login.issue.fail", err)
		return
	}

	h.cookies.SetPair(w, pair.AccessToken, pair.RefreshToken)

	resp := loginResponse{User: toUserResponse(user), Success: true}
	if h.cfg.CSRFEnabled {
		tok, err := h.cookies.IssueCSRF(w)
		if err != nil {
			h.log.Error("auth.login.csrf.fail", "err", err)
		}
		resp.CSRFToken = tok
	}

	h.auditLoginSuccess(ctx, user.ID, pair.RefreshJTI, ip, ua)
	h.metrics.LoginResult("success")
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if h.cfg.CSRFEnabled && !h.cookies.CSRFValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "csrf validation failed")
		return
	}

	refresh, ok := h.cookies.RefreshToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "refresh_invalid", "refresh cookie not found")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	pair, err := h.coord.Rotate(ctx, refresh)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrRefreshReused):
		h.auditRefreshReuse(ctx, ip, ua)
		writeError(w, http.StatusUnauthorized, "refresh_reused", "refresh token already used")
		return
	case errors.Is(err, session.ErrRefreshExpired):
		writeError(w, http.StatusUnauthorized, "refresh_expired", "refresh token expired")
		return
	case errors.Is(err, session.ErrRefreshInvalid):
		writeError(w, http.StatusUnauthorized, "refresh_invalid", "refresh token invalid")
		return
	default:
		h.writeSessionError(w, "auth.refresh.fail", err)
		return
	}

	if pair.Rotated {
		h.cookies.SetPair(w, pair.AccessToken, pair.RefreshToken)
	} else {
		h.cookies.SetAccess(w, pair.AccessToken)
	}

	h.auditRefreshSuccess(ctx, pair.RefreshJTI, pair.Rotated, ip, ua)
	writeJSON(w, http.StatusOK, detailResponse{Detail: "token refreshed"})
}

// handleLogout always clears cookies and answers 204; revocation is best-effort.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	h.cookies.Clear(w)

	revoked := false
	if refresh, ok := h.cookies.RefreshToken(r); ok {
		err := h.coord.Revoke(r.Context(), refresh)
		switch {
		case err == nil:
			revoked = true
		case errors.Is(err, session.ErrRefreshInvalid):
			h.log.Debug("auth.logout.revoke.skip", "err", err)
		default:
			h.log.Warn("auth.logout.revoke.fail", "err", err)
		}
	}

	h.auditLogout(r.Context(), revoked, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	user, ok := h.loadUser(r.Context(), w, p)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Detail: "token is valid", User: toUserResponse(user)})
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	tok, err := h.cookies.IssueCSRF(w)
	if err != nil {
		h.log.Error("auth.csrf.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, csrfResponse{CSRFToken: tok})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeNotAuthenticated(w)
		return
	}
	user, ok := h.loadUser(r.Context(), w, p)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ---- helpers ----

func (h *Handler) loadUser(ctx context.Context, w http.ResponseWriter, p session.Principal) (identity.User, bool) {
	user, err := h.users.GetByID(ctx, p.ID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeNotAuthenticated(w)
			return identity.User{}, false
		}
		h.log.Error("auth.user.load.fail", "err", err)
		h.writeUnavailable(w)
		return identity.User{}, false
	}
	return user, true
}

func (h *Handler) writeSessionError(w http.ResponseWriter, event string, err error) {
	h.log.Error(event, "err", err)
	if errors.Is(err, session.ErrStoreUnavailable) {
		h.writeUnavailable(w)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func (h *Handler) writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(h.cfg.RetryAfter), 10))
	writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
}

func writeNotAuthenticated(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
