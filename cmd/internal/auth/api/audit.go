package authapi

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Audit events are structured log records under the "audit" group so they can
// be routed separately from request logs.

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, identifier, reason string) {
	h.audit(ctx, "auth.login.failed", ip, ua,
		slog.String("identifier", identifier),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, refreshJTI string, ip net.IP, ua string) {
	h.audit(ctx, "auth.login.success", ip, ua,
		slog.String("user_id", userID),
		slog.String("jti", refreshJTI),
	)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua string, retryAfter time.Duration) {
	h.audit(ctx, "auth.login.rate_limited", ip, ua,
		slog.Int64("retry_after_s", retryAfterSeconds(retryAfter)),
	)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, refreshJTI string, rotated bool, ip net.IP, ua string) {
	h.audit(ctx, "auth.refresh.success", ip, ua,
		slog.String("jti", refreshJTI),
		slog.Bool("rotated", rotated),
	)
}

func (h *Handler) auditRefreshReuse(ctx context.Context, ip net.IP, ua string) {
	h.audit(ctx, "auth.refresh.reuse_detected", ip, ua)
}

func (h *Handler) auditLogout(ctx context.Context, revoked bool, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout", ip, ua, slog.Bool("revoked", revoked))
}

func (h *Handler) audit(ctx context.Context, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}

	base := []any{slog.String("action", action)}
	if ip != nil {
		base = append(base, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		base = append(base, slog.String("user_agent", ua))
	}
	for _, a := range attrs {
		base = append(base, a)
	}

	h.log.LogAttrs(ctx, slog.LevelInfo, "auth.audit", slog.Group("audit", base...))
}
