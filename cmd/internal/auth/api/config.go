package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// LoginIPMax login attempts are allowed per LoginIPWindow from one client
	// IP, refilled continuously. Zero disables throttling.
	LoginIPMax    int
	LoginIPWindow time.Duration

	// CSRFEnabled requires the double-submit header on /auth/refresh.
	CSRFEnabled bool

	// RetryAfter is advertised on 503 responses caused by store outages.
	RetryAfter time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:    envBool("SESSIOND_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:  envInt64("SESSIOND_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginIPMax:    envInt("SESSIOND_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow: envDuration("SESSIOND_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
		CSRFEnabled:   envBool("SESSIOND_AUTH_CSRF_ENABLED", false),
		RetryAfter:    envDuration("SESSIOND_AUTH_RETRY_AFTER", 5*time.Second),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.LoginIPWindow <= 0 {
		c.LoginIPWindow = 5 * time.Minute
	}
	if c.RetryAfter <= 0 {
		c.RetryAfter = 5 * time.Second
	}
	return c
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
