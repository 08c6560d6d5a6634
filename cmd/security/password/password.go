package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = argon2.Version

var b64 = base64.RawStdEncoding

// phcHash is the parsed form of
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>.
type phcHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h phcHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.params.MemoryKiB, h.params.Iterations, h.params.Parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key),
	)
}

func parsePHC(encoded string) (phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phcHash{}, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return phcHash{}, ErrInvalidHash
	}

	var p Argon2idParams
	var par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &par); err != nil {
		return phcHash{}, ErrInvalidHash
	}
	if p.MemoryKiB == 0 || p.Iterations == 0 || par == 0 || par > 255 {
		return phcHash{}, ErrInvalidHash
	}
	p.Parallelism = uint8(par)

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return phcHash{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return phcHash{}, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt)) // #nosec G115 -- bounded by the encoded string.
	p.KeyLength = uint32(len(key))   // #nosec G115 -- bounded by the encoded string.

	return phcHash{params: p, salt: salt, key: key}, nil
}

func derive(plaintext string, salt []byte, p Argon2idParams) []byte {
	return argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
}

// Hash applies the policy and returns a PHC-encoded Argon2id hash.
func (c Config) Hash(plaintext string) (string, error) {
	if err := c.Validate(plaintext); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	return phcHash{params: c.Params, salt: salt, key: derive(plaintext, salt, c.Params)}.String(), nil
}

// Verify reports whether plaintext matches encodedHash. A malformed hash, or
// one whose cost exceeds twice the configured parameters, yields ErrInvalidHash.
func (c Config) Verify(encodedHash, plaintext string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if !h.params.within(c.Params) {
		return false, ErrInvalidHash
	}
	return subtle.ConstantTimeCompare(derive(plaintext, h.salt, h.params), h.key) == 1, nil
}

// within accepts hashes made with older or smaller settings and rejects
// attacker-sized ones.
func (p Argon2idParams) within(limit Argon2idParams) bool {
	return p.MemoryKiB <= limit.MemoryKiB*2 &&
		p.Iterations <= limit.Iterations*2 &&
		uint32(p.Parallelism) <= uint32(limit.Parallelism)*2 &&
		p.SaltLength >= 8 && p.SaltLength <= 64 &&
		p.KeyLength >= 16 && p.KeyLength <= 128
}

// NeedsRehash reports whether encodedHash was produced with weaker parameters
// than c. Malformed hashes always need a rehash.
func (c Config) NeedsRehash(encodedHash string) bool {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return true
	}
	return h.params.MemoryKiB < c.Params.MemoryKiB ||
		h.params.Iterations < c.Params.Iterations ||
		h.params.KeyLength < c.Params.KeyLength
}

var dummySalt = []byte("sessiond-dummy-salt")

// VerifyDummy spends roughly the cost of one Verify without a stored hash, so
// unknown and known identifiers take comparable time.
func (c Config) VerifyDummy(plaintext string) {
	_ = derive(plaintext, dummySalt, c.Params)
}
