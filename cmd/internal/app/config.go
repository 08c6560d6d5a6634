package app

import (
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	// Env is "production" or anything else (development).
	Env string

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	// StoreBackend selects the revocation store: memory, postgres or redis.
	StoreBackend string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	RedisPrefix  string

	// AuthBackend selects the principal directory: memory or postgres.
	AuthBackend string
	DevUsers    string

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool
}

// Production reports whether secure defaults must apply.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Env: EnvString("SESSIOND_ENV", "development"),

		HTTPAddr:  EnvString("SESSIOND_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SESSIOND_LOG_LEVEL", "info"),
		LogFormat: EnvString("SESSIOND_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SESSIOND_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SESSIOND_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SESSIOND_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SESSIOND_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("SESSIOND_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("SESSIOND_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:    EnvString("SESSIOND_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("SESSIOND_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("SESSIOND_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("SESSIOND_MIGRATE_ON_START", true),

		StoreBackend: EnvString("SESSIOND_STORE_BACKEND", "memory"),
		RedisAddr:    EnvString("SESSIOND_REDIS_ADDR", ""),
		RedisPass:    EnvString("SESSIOND_REDIS_PASSWORD", ""),
		RedisDB:      EnvInt("SESSIOND_REDIS_DB", 0),
		RedisPrefix:  EnvString("SESSIOND_REDIS_PREFIX", "sessiond"),

		AuthBackend: EnvString("SESSIOND_AUTH_BACKEND", "memory"),
		DevUsers:    EnvString("SESSIOND_DEV_USERS", ""),

		CORSAllowedOrigins:   EnvList("SESSIOND_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("SESSIOND_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("SESSIOND_CORS_MAX_AGE_SECONDS", 600),

		MetricsEnabled: EnvBool("SESSIOND_METRICS_ENABLED", true),
	}
}
