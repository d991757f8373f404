package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

var errInvalidArgon2Config = errors.New("argon2: invalid configuration")

// Argon2Config defines tunable parameters for Argon2id password hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the library default Argon2id configuration.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func validateArgon2Config(cfg Argon2Config) error {
	if cfg.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidArgon2Config)
	}
	if cfg.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidArgon2Config)
	}
	if cfg.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidArgon2Config)
	}
	if cfg.SaltLength < 16 {
		return fmt.Errorf("%w: salt length must be at least 16 bytes", errInvalidArgon2Config)
	}
	if cfg.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidArgon2Config)
	}
	return nil
}

// Argon2Hasher derives and verifies password hashes using Argon2id.
// Hash and salt are stored as separate base64 columns on the credential row.
type Argon2Hasher struct {
	cfg Argon2Config
}

// NewArgon2Hasher constructs a hasher after validating the configuration.
func NewArgon2Hasher(cfg Argon2Config) (*Argon2Hasher, error) {
	if err := validateArgon2Config(cfg); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cfg: cfg}, nil
}

// Config returns the active parameters.
func (h *Argon2Hasher) Config() Argon2Config {
	return h.cfg
}

// Hash derives an Argon2id key for the password with a fresh random salt.
// Both return values are base64 (raw std) encoded.
func (h *Argon2Hasher) Hash(password string) (string, string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	return base64.RawStdEncoding.EncodeToString(sum), base64.RawStdEncoding.EncodeToString(salt), nil
}

// Verify re-derives the key with the stored salt and compares in constant
// time. Malformed stored values count as a verification failure, never an
// error the caller could leak.
func (h *Argon2Hasher) Verify(password, hash, salt string) (bool, error) {
	if password == "" || hash == "" || salt == "" {
		return false, nil
	}

	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return false, nil
	}
	expected, err := base64.RawStdEncoding.DecodeString(hash)
	if err != nil {
		return false, nil
	}
	if len(expected) == 0 {
		return false, nil
	}

	computed := argon2.IDKey([]byte(password), rawSalt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
