package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Store backends for the revocation store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// resources owns connections opened during wiring.
type resources struct {
	pool  *pgxpool.Pool
	redis redis.UniversalClient
}

func (r *resources) Close() {
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

// needsDB reports whether any configured backend requires Postgres.
func needsDB(cfg Config) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.StoreBackend), StorePostgres) ||
		strings.EqualFold(strings.TrimSpace(cfg.AuthBackend), string(identity.BackendPostgres))
}

// openResources connects to Postgres and Redis as the backends demand.
func openResources(ctx context.Context, cfg Config, log Logger) (*resources, error) {
	res := &resources{}

	if needsDB(cfg) {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("app: SESSIOND_DATABASE_URL is required for the postgres backend")
		}
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("app: db: %w", err)
		}
		res.pool = pool
		log.Info("db.enabled", "migrate_on_start", cfg.MigrateOnStart)
	}

	if strings.EqualFold(strings.TrimSpace(cfg.StoreBackend), StoreRedis) {
		if cfg.RedisAddr == "" {
			res.Close()
			return nil, fmt.Errorf("app: SESSIOND_REDIS_ADDR is required for the redis backend")
		}
		res.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    strings.Split(cfg.RedisAddr, ","),
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := res.redis.Ping(pctx).Err()
		cancel()
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		log.Info("redis.enabled", "addr", cfg.RedisAddr)
	}

	return res, nil
}

// newRevocationStore selects the session.Store implementation.
func newRevocationStore(cfg Config, sess session.Config, res *resources) (session.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case StoreMemory, "":
		return session.NewMemoryStore(), nil
	case StorePostgres:
		return session.NewPostgresStore(res.pool), nil
	case StoreRedis:
		return session.NewRedisStore(res.redis, cfg.RedisPrefix, session.WithRedisGrace(sess.Leeway)), nil
	default:
		return nil, fmt.Errorf("app: unknown store backend %q", cfg.StoreBackend)
	}
}

// newDirectory selects the principal directory and seeds development users
// into the in-memory one.
func newDirectory(ctx context.Context, cfg Config, pw password.Config, res *resources, log Logger) (identity.Directory, error) {
	backend, err := identity.ParseBackend(cfg.AuthBackend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case identity.BackendPostgres:
		dir, err := identity.NewPostgresDirectory(res.pool)
		if err != nil {
			return nil, err
		}
		return dir, nil
	default:
		dir := identity.NewMemoryDirectory()
		users, err := identity.ParseDevUsers(cfg.DevUsers)
		if err != nil {
			return nil, err
		}
		if err := identity.SeedDevUsers(ctx, dir, pw, users); err != nil {
			return nil, err
		}
		log.Info("identity.memory", "dev_users", len(users))
		return dir, nil
	}
}
