package session

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sessiond/cmd/security/token"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls token lifetimes, refresh rotation policy, clock skew tolerance,
// store deadlines and the shared signing key.
type Config struct {
	// Issuer is the value set in the "iss" claim of every token.
	Issuer string

	// AccessTTL is the lifetime of access tokens. Must be much shorter than RefreshTTL.
	AccessTTL time.Duration

	// RefreshTTL is the lifetime of refresh tokens (and the refresh cookie Max-Age).
	RefreshTTL time.Duration

	// Leeway tolerates clock skew on expiry checks.
	Leeway time.Duration

	// RotateRefreshTokens enables single-use refresh tokens with blacklist-after-rotation.
	RotateRefreshTokens bool

	// StoreTimeout bounds every revocation store call.
	StoreTimeout time.Duration

	// ReaperInterval is how often expired records are purged. Zero disables the reaper.
	ReaperInterval time.Duration

	// SigningKey is the HS256 secret shared by the codec.
	SigningKey []byte
}

// DefaultConfig returns the default lifetimes and policies. SigningKey is left empty.
func DefaultConfig() Config {
	return Config{
		Issuer:              "sessiond",
		AccessTTL:           15 * time.Minute,
		RefreshTTL:          7 * 24 * time.Hour,
		Leeway:              0,
		RotateRefreshTokens: true,
		StoreTimeout:        2 * time.Second,
		ReaperInterval:      time.Hour,
	}
}

// Validate checks invariants that do not depend on the environment.
func (c Config) Validate() error {
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return ErrConfig
	}
	if c.AccessTTL >= c.RefreshTTL {
		return ErrConfig
	}
	if c.Leeway < 0 || c.StoreTimeout <= 0 || c.ReaperInterval < 0 {
		return ErrConfig
	}
	if len(c.SigningKey) < token.MinSigningKeyBytes {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - SESSIOND_SIGNING_KEY (at least 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - SESSIOND_ISSUER
//   - SESSIOND_ACCESS_TTL
//   - SESSIOND_REFRESH_TTL
//   - SESSIOND_LEEWAY
//   - SESSIOND_ROTATE_REFRESH
//   - SESSIOND_STORE_TIMEOUT
//   - SESSIOND_REAPER_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("SESSIOND_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	var err error
	if cfg.AccessTTL, err = envDuration("SESSIOND_ACCESS_TTL", cfg.AccessTTL, false); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("SESSIOND_REFRESH_TTL", cfg.RefreshTTL, false); err != nil {
		return Config{}, err
	}
	if cfg.Leeway, err = envDuration("SESSIOND_LEEWAY", cfg.Leeway, true); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = envDuration("SESSIOND_STORE_TIMEOUT", cfg.StoreTimeout, false); err != nil {
		return Config{}, err
	}
	if cfg.ReaperInterval, err = envDuration("SESSIOND_REAPER_INTERVAL", cfg.ReaperInterval, true); err != nil {
		return Config{}, err
	}

	if v := strings.TrimSpace(os.Getenv("SESSIOND_ROTATE_REFRESH")); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return Config{}, ErrConfig
		}
		cfg.RotateRefreshTokens = b
	}

	key, err := token.SigningKeyFromEnv(token.MinSigningKeyBytes)
	if err != nil {
		return Config{}, ErrConfig
	}
	cfg.SigningKey = key

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envDuration(name string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, ErrConfig
	}
	return d, nil
}
