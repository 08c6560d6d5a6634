package app

import (
	"errors"
	"net/http"

	"sessiond/cmd/internal/auth/cookies"
	"sessiond/cmd/internal/auth/session"
)

// ValidateSecurityConfig enforces the production security policy at startup.
// Outside production it only rejects combinations browsers refuse anyway.
func ValidateSecurityConfig(cfg Config, sess session.Config, cp cookies.Policy) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	if !cfg.Production() {
		return nil
	}

	if !cp.Secure {
		return errors.New("security policy: production requires SESSIOND_COOKIE_SECURE=true")
	}
	if cp.SameSite == http.SameSiteDefaultMode {
		return errors.New("security policy: production requires an explicit SESSIOND_COOKIE_SAMESITE")
	}
	if !sess.RotateRefreshTokens {
		return errors.New("security policy: production requires SESSIOND_ROTATE_REFRESH=true")
	}
	if cfg.DevUsers != "" {
		return errors.New("security policy: SESSIOND_DEV_USERS is not allowed in production")
	}
	for _, o := range cfg.CORSAllowedOrigins {
		if o == "*" && cfg.CORSAllowCredentials {
			return errors.New("security policy: wildcard CORS origin with credentials is not allowed in production")
		}
	}
	return nil
}
