package vaultfs

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/xts"
)

// Data cipher modes stored in the header's data triple
const (
	// CipherNone stores blocks in clear
	CipherNone uint32 = iota
	// CipherAESCBC uses AES-CBC with a per-block IV; ParamA is the key size in bits
	CipherAESCBC
	// CipherAESXTS uses AES-XTS with the block index as sector; ParamA is the XTS key size in bits
	CipherAESXTS
	// CipherChaCha20 uses the ChaCha20 stream with a per-block nonce
	CipherChaCha20
)

// CipherModeName returns the string representation of a data cipher mode
func CipherModeName(mode uint32) string {
	switch mode {
	case CipherNone:
		return "none"
	case CipherAESCBC:
		return "aes-cbc"
	case CipherAESXTS:
		return "aes-xts"
	case CipherChaCha20:
		return "chacha20"
	default:
		return "unknown"
	}
}

// CipherProvider is a length-preserving symmetric cipher keyed with a key and IV.
// Encrypt and Decrypt work in place on one block; sector is the block index.
type CipherProvider interface {
	// SetKey installs key and iv; key may be longer than the cipher needs
	SetKey(key, iv []byte) error

	// Encrypt encrypts buf in place
	Encrypt(buf []byte, sector uint64) error

	// Decrypt decrypts buf in place
	Decrypt(buf []byte, sector uint64) error

	// Wipe drops key material
	Wipe()
}

// NewCipherProvider creates a data cipher for the given header triple
func NewCipherProvider(p CipherParams) (CipherProvider, error) {
	switch p.Mode {
	case CipherNone:
		return nullCipher{}, nil
	case CipherAESCBC:
		bits := p.ParamA
		if bits == 0 {
			bits = 256
		}
		if bits != 128 && bits != 192 && bits != 256 {
			return nil, fmt.Errorf("%w: aes-cbc key size %d", ErrUnsupportedCipher, bits)
		}
		return &cbcCipher{keyLen: int(bits / 8)}, nil
	case CipherAESXTS:
		bits := p.ParamA
		if bits == 0 {
			bits = 512
		}
		if bits != 256 && bits != 512 {
			return nil, fmt.Errorf("%w: aes-xts key size %d", ErrUnsupportedCipher, bits)
		}
		return &xtsCipher{keyLen: int(bits / 8)}, nil
	case CipherChaCha20:
		return &chachaCipher{}, nil
	default:
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedCipher, p.Mode)
	}
}

// DefaultDataCipher is the data triple used when none is configured
func DefaultDataCipher() CipherParams {
	return CipherParams{Mode: CipherAESXTS, ParamA: 512}
}

func checkBlockLen(buf []byte) error {
	if err := ValidateBuffer(buf, "buffer", aes.BlockSize); err != nil {
		return err
	}
	if len(buf)%aes.BlockSize != 0 {
		return fmt.Errorf("buffer length %d is not a multiple of %d", len(buf), aes.BlockSize)
	}
	return nil
}

// cbcCipher implements CipherProvider using AES-CBC.
// Each sector uses the IV with the sector number mixed into its first 8 bytes.
type cbcCipher struct {
	keyLen int
	block  cipher.Block
	iv     [aes.BlockSize]byte
}

func (c *cbcCipher) SetKey(key, iv []byte) error {
	if err := ValidateKey(key, c.keyLen); err != nil {
		return err
	}
	if len(iv) < aes.BlockSize {
		return fmt.Errorf("iv must be at least %d bytes, got %d", aes.BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key[:c.keyLen])
	if err != nil {
		return fmt.Errorf("failed to create AES cipher: %w", err)
	}
	c.block = block
	copy(c.iv[:], iv)
	return nil
}

func (c *cbcCipher) sectorIV(sector uint64) []byte {
	iv := c.iv
	binary.LittleEndian.PutUint64(iv[:8], binary.LittleEndian.Uint64(iv[:8])^sector)
	return iv[:]
}

func (c *cbcCipher) Encrypt(buf []byte, sector uint64) error {
	if c.block == nil {
		return ErrInvalidKey
	}
	if err := checkBlockLen(buf); err != nil {
		return err
	}
	cipher.NewCBCEncrypter(c.block, c.sectorIV(sector)).CryptBlocks(buf, buf)
	return nil
}

func (c *cbcCipher) Decrypt(buf []byte, sector uint64) error {
	if c.block == nil {
		return ErrInvalidKey
	}
	if err := checkBlockLen(buf); err != nil {
		return err
	}
	cipher.NewCBCDecrypter(c.block, c.sectorIV(sector)).CryptBlocks(buf, buf)
	return nil
}

func (c *cbcCipher) Wipe() {
	c.block = nil
	clear(c.iv[:])
}

// xtsCipher implements CipherProvider using AES-XTS
type xtsCipher struct {
	keyLen int
	c      *xts.Cipher
	tweak  uint64
}

func (x *xtsCipher) SetKey(key, iv []byte) error {
	if err := ValidateKey(key, x.keyLen); err != nil {
		return err
	}
	if len(iv) < 8 {
		return fmt.Errorf("iv must be at least 8 bytes, got %d", len(iv))
	}
	c, err := xts.NewCipher(aes.NewCipher, key[:x.keyLen])
	if err != nil {
		return fmt.Errorf("failed to create XTS cipher: %w", err)
	}
	x.c = c
	x.tweak = binary.LittleEndian.Uint64(iv[:8])
	return nil
}

func (x *xtsCipher) Encrypt(buf []byte, sector uint64) error {
	if x.c == nil {
		return ErrInvalidKey
	}
	if err := checkBlockLen(buf); err != nil {
		return err
	}
	x.c.Encrypt(buf, buf, sector^x.tweak)
	return nil
}

func (x *xtsCipher) Decrypt(buf []byte, sector uint64) error {
	if x.c == nil {
		return ErrInvalidKey
	}
	if err := checkBlockLen(buf); err != nil {
		return err
	}
	x.c.Decrypt(buf, buf, sector^x.tweak)
	return nil
}

func (x *xtsCipher) Wipe() {
	x.c = nil
	x.tweak = 0
}

// chachaCipher implements CipherProvider using the ChaCha20 stream
type chachaCipher struct {
	key   []byte
	nonce [chacha20.NonceSize]byte
}

func (c *chachaCipher) SetKey(key, iv []byte) error {
	if err := ValidateKey(key, chacha20.KeySize); err != nil {
		return err
	}
	if len(iv) < chacha20.NonceSize {
		return fmt.Errorf("iv must be at least %d bytes, got %d", chacha20.NonceSize, len(iv))
	}
	c.key = append([]byte(nil), key[:chacha20.KeySize]...)
	copy(c.nonce[:], iv)
	return nil
}

func (c *chachaCipher) xor(buf []byte, sector uint64) error {
	if c.key == nil {
		return ErrInvalidKey
	}
	nonce := c.nonce
	binary.LittleEndian.PutUint64(nonce[4:], binary.LittleEndian.Uint64(nonce[4:])^sector)
	s, err := chacha20.NewUnauthenticatedCipher(c.key, nonce[:])
	if err != nil {
		return fmt.Errorf("failed to create ChaCha20 cipher: %w", err)
	}
	s.XORKeyStream(buf, buf)
	return nil
}

func (c *chachaCipher) Encrypt(buf []byte, sector uint64) error { return c.xor(buf, sector) }
func (c *chachaCipher) Decrypt(buf []byte, sector uint64) error { return c.xor(buf, sector) }

func (c *chachaCipher) Wipe() {
	ClearBytes(c.key)
	c.key = nil
	clear(c.nonce[:])
}

// nullCipher leaves blocks untouched
type nullCipher struct{}

func (nullCipher) SetKey(key, iv []byte) error             { return nil }
func (nullCipher) Encrypt(buf []byte, sector uint64) error { return nil }
func (nullCipher) Decrypt(buf []byte, sector uint64) error { return nil }
func (nullCipher) Wipe()                                   {}

// ClearBytes overwrites b with zeros
func ClearBytes(b []byte) {
	clear(b)
}
