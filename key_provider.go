package vaultfs

import (
	"crypto/aes"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Key envelope modes stored in the header's key triple
const (
	// KeyModeNone leaves the master key in clear
	KeyModeNone uint32 = iota
	// KeyModePBKDF2 derives the envelope key with PBKDF2; ParamA is the
	// iteration count and ParamB the HashFunc
	KeyModePBKDF2
	// KeyModeArgon2id derives the envelope key with Argon2id; ParamA is the
	// time parameter and ParamB the memory in KiB
	KeyModeArgon2id
)

// KeyModeName returns the string representation of a key envelope mode
func KeyModeName(mode uint32) string {
	switch mode {
	case KeyModeNone:
		return "none"
	case KeyModePBKDF2:
		return "pbkdf2"
	case KeyModeArgon2id:
		return "argon2id"
	default:
		return "unknown"
	}
}

// HashFunc represents hash function types for PBKDF2
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA512 hash function
	SHA512
)

const (
	defaultPBKDF2Iterations = 100000
	defaultArgon2Time       = 3
	defaultArgon2Memory     = 64 * 1024
	argon2Parallelism       = 4
	envelopeKeySize         = 32

	// Upper bounds on derivation cost; headers beyond them are rejected
	// before any derivation runs.
	maxPBKDF2Iterations = 10_000_000
	maxArgon2Time       = 64
	maxArgon2Memory     = 2 << 20 // KiB
)

// The envelope has no per-container salt field, so derivation uses a fixed
// salt; together with the zero IV this keeps the envelope deterministic.
var envelopeSalt = []byte("vaultfs key envelope")

// DefaultKeyCipher returns the key triple used when none is configured
func DefaultKeyCipher() CipherParams {
	return CipherParams{Mode: KeyModePBKDF2, ParamA: defaultPBKDF2Iterations, ParamB: uint32(SHA256)}
}

// ValidateKeyCipher checks that a key triple names a known derivation with
// parameters inside the supported cost range. Zero parameters select defaults.
func ValidateKeyCipher(p CipherParams) error {
	switch p.Mode {
	case KeyModeNone:
		return nil
	case KeyModePBKDF2:
		if p.ParamB != uint32(SHA256) && p.ParamB != uint32(SHA512) {
			return &ValidationError{Field: "key_cipher", Value: p.ParamB, Message: "unsupported pbkdf2 hash", Err: ErrUnsupportedCipher}
		}
		if p.ParamA > maxPBKDF2Iterations {
			return &ValidationError{Field: "key_cipher", Value: p.ParamA,
				Message: fmt.Sprintf("pbkdf2 iterations above %d", maxPBKDF2Iterations), Err: ErrInvalidSize}
		}
	case KeyModeArgon2id:
		if p.ParamA > maxArgon2Time {
			return &ValidationError{Field: "key_cipher", Value: p.ParamA,
				Message: fmt.Sprintf("argon2id time above %d", maxArgon2Time), Err: ErrInvalidSize}
		}
		if p.ParamB > maxArgon2Memory {
			return &ValidationError{Field: "key_cipher", Value: p.ParamB,
				Message: fmt.Sprintf("argon2id memory above %d KiB", maxArgon2Memory), Err: ErrInvalidSize}
		}
	default:
		return &ValidationError{Field: "key_cipher", Value: p.Mode, Message: "unknown key mode", Err: ErrUnsupportedCipher}
	}
	return nil
}

// DeriveKey derives the envelope key from a password under the given key triple
func DeriveKey(password []byte, p CipherParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	if err := ValidateKeyCipher(p); err != nil {
		return nil, err
	}

	switch p.Mode {
	case KeyModePBKDF2:
		iterations := int(p.ParamA)
		if iterations == 0 {
			iterations = defaultPBKDF2Iterations
		}
		var hashFunc func() hash.Hash
		switch HashFunc(p.ParamB) {
		case SHA256:
			hashFunc = sha256.New
		case SHA512:
			hashFunc = sha512.New
		default:
			return nil, fmt.Errorf("unsupported hash function: %v", p.ParamB)
		}
		return pbkdf2.Key(password, envelopeSalt, iterations, envelopeKeySize, hashFunc), nil

	case KeyModeArgon2id:
		t := p.ParamA
		if t == 0 {
			t = defaultArgon2Time
		}
		memory := p.ParamB
		if memory == 0 {
			memory = defaultArgon2Memory
		}
		return argon2.IDKey(password, envelopeSalt, t, memory, argon2Parallelism, envelopeKeySize), nil

	default:
		return nil, fmt.Errorf("%w: key mode %d", ErrUnsupportedCipher, p.Mode)
	}
}

// PasswordCipher returns the envelope cipher for a password: AES-256-CBC keyed
// with the derived key and an all-zero IV.
func PasswordCipher(password []byte, p CipherParams) (CipherProvider, error) {
	key, err := DeriveKey(password, p)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer ClearBytes(key)

	c := &cbcCipher{keyLen: envelopeKeySize}
	var zeroIV [aes.BlockSize]byte
	if err := c.SetKey(key, zeroIV[:]); err != nil {
		return nil, err
	}
	return c, nil
}
