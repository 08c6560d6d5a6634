package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost. MemoryKiB is in KiB as
// required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds acceptable plaintext passwords.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak enables a minimal trivial-password check.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns a baseline for interactive logins. Parallelism
// follows the CPU count clamped to [1..4].
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 12,
			MaxLength: 256,
		},
	}
}

// envSetting binds one environment variable to a Config field.
type envSetting struct {
	key      string
	min, max uint64
	set      func(*Config, uint64)
}

var envSettings = []envSetting{
	{"SESSIOND_PASSWORD_MIN_LEN", 1, 1024, func(c *Config, v uint64) { c.Policy.MinLength = int(v) }},
	{"SESSIOND_PASSWORD_MAX_LEN", 1, 4096, func(c *Config, v uint64) { c.Policy.MaxLength = int(v) }},
	{"SESSIOND_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, func(c *Config, v uint64) { c.Params.MemoryKiB = uint32(v) }},
	{"SESSIOND_ARGON2_ITERATIONS", 1, 20, func(c *Config, v uint64) { c.Params.Iterations = uint32(v) }},
	{"SESSIOND_ARGON2_PARALLELISM", 1, 64, func(c *Config, v uint64) { c.Params.Parallelism = uint8(v) }},
	{"SESSIOND_ARGON2_SALT_LEN", 8, 64, func(c *Config, v uint64) { c.Params.SaltLength = uint32(v) }},
	{"SESSIOND_ARGON2_KEY_LEN", 16, 64, func(c *Config, v uint64) { c.Params.KeyLength = uint32(v) }},
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - SESSIOND_PASSWORD_MIN_LEN, SESSIOND_PASSWORD_MAX_LEN
//   - SESSIOND_PASSWORD_REJECT_VERY_WEAK (true/false)
//   - SESSIOND_ARGON2_MEMORY_KIB, SESSIOND_ARGON2_ITERATIONS, SESSIOND_ARGON2_PARALLELISM
//   - SESSIOND_ARGON2_SALT_LEN, SESSIOND_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	for _, s := range envSettings {
		raw, ok := os.LookupEnv(s.key)
		if !ok {
			continue
		}
		v, err := parseBounded(raw, s.min, s.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", s.key, err)
		}
		s.set(&cfg, v)
	}

	if raw, ok := os.LookupEnv("SESSIOND_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("SESSIOND_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}

func parseBounded(s string, lo, hi uint64) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("out of range [%d..%d]", lo, hi)
	}
	return v, nil
}
