package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis layout:
//
//	<prefix>:out:<jti>  JSON OutstandingRecord, expires with the token (+ grace)
//	<prefix>:bl:<jti>   blacklist timestamp (unix ms), shares the record's TTL
//
// Expired state disappears through key TTLs, so PurgeExpired is a no-op.
const (
	rotateStatusNotFound int64 = 0
	rotateStatusReused   int64 = 1
	rotateStatusRotated  int64 = 2
	rotateStatusConflict int64 = 3
)

const rotateScript = `
local ttl = redis.call("PTTL", KEYS[1])
if ttl == -2 then
  return 0
end
if ttl < 0 then
  ttl = tonumber(ARGV[3])
end
if not redis.call("SET", KEYS[2], ARGV[1], "PX", ttl, "NX") then
  return 1
end
if not redis.call("SET", KEYS[3], ARGV[2], "PX", ARGV[3], "NX") then
  redis.call("DEL", KEYS[2])
  return 3
end
return 2
`

const blacklistScript = `
local ttl = redis.call("PTTL", KEYS[1])
if ttl == -2 then
  return 0
end
if ttl < 0 then
  redis.call("SET", KEYS[2], ARGV[1], "NX")
else
  redis.call("SET", KEYS[2], ARGV[1], "PX", ttl, "NX")
end
return 1
`

var (
	rotateLua    = redis.NewScript(rotateScript)
	blacklistLua = redis.NewScript(blacklistScript)
)

// RedisStore implements Store on Redis. Rotation runs as a single Lua script,
// so the blacklist SET NX and the new record write are applied atomically.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	grace  time.Duration
	now    func() time.Time
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisGrace extends key TTLs beyond token expiry (typically the codec leeway).
func WithRedisGrace(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithRedisClock overrides the clock used to compute key TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore creates a Redis-backed store using prefix as the key namespace.
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = "sessiond"
	}
	s := &RedisStore{redis: client, prefix: prefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) outKey(jti string) string { return s.prefix + ":out:" + jti }
func (s *RedisStore) blKey(jti string) string  { return s.prefix + ":bl:" + jti }

func (s *RedisStore) ttl(expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(s.now()) + s.grace
	if d < time.Second {
		d = time.Second
	}
	return d
}

type redisRecord struct {
	JTI       string    `json:"jti"`
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

func encodeRecord(rec OutstandingRecord) ([]byte, error) {
	return json.Marshal(redisRecord(rec))
}

// PutOutstanding stores rec with a TTL matching its expiry.
func (s *RedisStore) PutOutstanding(ctx context.Context, rec OutstandingRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, s.outKey(rec.JTI), data, s.ttl(rec.ExpiresAt)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errDuplicateJTI
	}
	return nil
}

// GetOutstanding loads the record for jti.
func (s *RedisStore) GetOutstanding(ctx context.Context, jti string) (OutstandingRecord, error) {
	data, err := s.redis.Get(ctx, s.outKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return OutstandingRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return OutstandingRecord{}, err
	}

	var rr redisRecord
	if err := json.Unmarshal(data, &rr); err != nil {
		return OutstandingRecord{}, err
	}
	return OutstandingRecord(rr), nil
}

// Blacklist revokes jti (idempotent). Unknown jtis are ignored.
func (s *RedisStore) Blacklist(ctx context.Context, jti string, now time.Time) error {
	return blacklistLua.Run(ctx, s.redis,
		[]string{s.outKey(jti), s.blKey(jti)},
		strconv.FormatInt(now.UnixMilli(), 10),
	).Err()
}

// IsBlacklisted reports whether jti has a blacklist key.
func (s *RedisStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.blKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Rotate blacklists oldJTI and records next in one server-side script.
func (s *RedisStore) Rotate(ctx context.Context, oldJTI string, next OutstandingRecord, now time.Time) error {
	data, err := encodeRecord(next)
	if err != nil {
		return err
	}

	status, err := rotateLua.Run(ctx, s.redis,
		[]string{s.outKey(oldJTI), s.blKey(oldJTI), s.outKey(next.JTI)},
		strconv.FormatInt(now.UnixMilli(), 10),
		data,
		s.ttl(next.ExpiresAt).Milliseconds(),
	).Int64()
	if err != nil {
		return err
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusReused:
		return ErrAlreadyBlacklisted
	case rotateStatusNotFound:
		return ErrRecordNotFound
	case rotateStatusConflict:
		return errDuplicateJTI
	default:
		return errors.New("redis rotate: unexpected status " + strconv.FormatInt(status, 10))
	}
}

// PurgeExpired is a no-op: Redis expires keys on its own.
func (s *RedisStore) PurgeExpired(ctx context.Context, _ time.Time) (int64, error) {
	return 0, ctx.Err()
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
