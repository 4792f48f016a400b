package vaultfs

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// KeyManager owns the plaintext master key and IV of an open container and
// the data cipher keyed with them.
type KeyManager struct {
	header   *Header
	key      []byte
	iv       []byte
	data     CipherProvider
	parallel ParallelConfig
}

// keyHash returns the 16-byte BLAKE2b digest of the master key
func keyHash(key []byte) ([KeyHashLen]byte, error) {
	var out [KeyHashLen]byte
	h, err := blake2b.New(KeyHashLen, nil)
	if err != nil {
		return out, fmt.Errorf("failed to create key hash: %w", err)
	}
	h.Write(key)
	copy(out[:], h.Sum(nil))
	return out, nil
}

// GenerateRandom returns n bytes from crypto/rand
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// newKeyManager generates a fresh master key and IV and builds the header
// for a new container. Without a password the envelope is stored in clear.
func newKeyManager(opts *CreateOptions, parallel ParallelConfig) (*KeyManager, error) {
	keyCipher, dataCipher := opts.KeyCipher, opts.DataCipher
	if len(opts.Password) == 0 {
		keyCipher, dataCipher = CipherParams{}, CipherParams{}
	}

	// Reject unknown modes before any key material exists
	if _, err := NewCipherProvider(dataCipher); err != nil {
		return nil, err
	}

	key, err := GenerateRandom(MasterKeyLen)
	if err != nil {
		return nil, err
	}
	ivField, err := GenerateRandom(MasterKeyLen)
	if err != nil {
		return nil, err
	}

	km := &KeyManager{
		header:   NewHeader(opts.blockSize(), keyCipher, dataCipher),
		key:      key,
		iv:       append([]byte(nil), ivField[:DataIVLen]...),
		parallel: parallel,
	}
	if km.header.KeyHash, err = keyHash(key); err != nil {
		return nil, err
	}
	copy(km.header.MasterKey[:], key)
	copy(km.header.IV[:], ivField)

	if len(opts.Password) > 0 {
		pc, err := PasswordCipher(opts.Password, keyCipher)
		if err != nil {
			return nil, err
		}
		defer pc.Wipe()
		if err := km.seal(km.header, pc); err != nil {
			return nil, err
		}
	}

	if err := km.initData(); err != nil {
		km.Wipe()
		return nil, err
	}
	return km, nil
}

// openKeyManager unwraps the envelope of h. A hash mismatch is ErrWrongPassword.
func openKeyManager(h *Header, password []byte, parallel ParallelConfig) (*KeyManager, error) {
	key := append([]byte(nil), h.MasterKey[:]...)
	ivField := append([]byte(nil), h.IV[:]...)

	if h.Encrypted() {
		if len(password) == 0 {
			return nil, ErrMissingCipher
		}
		pc, err := PasswordCipher(password, h.KeyCipher)
		if err != nil {
			return nil, err
		}
		defer pc.Wipe()
		if err := pc.Decrypt(key, 0); err != nil {
			return nil, fmt.Errorf("failed to decrypt master key: %w", err)
		}
		if err := pc.Decrypt(ivField, 0); err != nil {
			return nil, fmt.Errorf("failed to decrypt iv: %w", err)
		}
	}

	sum, err := keyHash(key)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(sum[:], h.KeyHash[:]) != 1 {
		ClearBytes(key)
		ClearBytes(ivField)
		if h.Encrypted() {
			return nil, NewAuthenticationError("", ErrWrongPassword)
		}
		return nil, NewCorruptionError("", "master key hash mismatch")
	}

	km := &KeyManager{
		header:   h,
		key:      key,
		iv:       append([]byte(nil), ivField[:DataIVLen]...),
		parallel: parallel,
	}
	ClearBytes(ivField)
	if err := km.initData(); err != nil {
		km.Wipe()
		return nil, err
	}
	return km, nil
}

func (k *KeyManager) initData() error {
	data, err := NewCipherProvider(k.header.DataCipher)
	if err != nil {
		return err
	}
	if err := data.SetKey(k.key, k.iv); err != nil {
		return fmt.Errorf("failed to key data cipher: %w", err)
	}
	k.data = data
	return nil
}

// seal encrypts the master key and IV fields of h under pc (all-zero IV)
func (k *KeyManager) seal(h *Header, pc CipherProvider) error {
	copy(h.MasterKey[:], k.key)
	copy(h.IV[:DataIVLen], k.iv)
	if err := pc.Encrypt(h.MasterKey[:], 0); err != nil {
		return fmt.Errorf("failed to encrypt master key: %w", err)
	}
	if err := pc.Encrypt(h.IV[:], 0); err != nil {
		return fmt.Errorf("failed to encrypt iv: %w", err)
	}
	h.IsEncrypted = 1
	return nil
}

// Header returns the current header
func (k *KeyManager) Header() *Header {
	return k.header
}

// Hooks returns the block translator hooks bound to the data cipher
func (k *KeyManager) Hooks(blockSize int) BlockHooks {
	bs := int64(blockSize)
	return BlockHooks{
		FillEmpty: func(buf []byte, off int64) error {
			_, err := rand.Read(buf)
			return err
		},
		BeforeWrite: func(buf []byte, off int64) error {
			return processBlocks(k.parallel, buf, blockSize, uint64(off/bs), k.data.Encrypt)
		},
		AfterRead: func(buf []byte, off int64) error {
			return processBlocks(k.parallel, buf, blockSize, uint64(off/bs), k.data.Decrypt)
		},
	}
}

// Wipe clears the plaintext key material
func (k *KeyManager) Wipe() {
	ClearBytes(k.key)
	ClearBytes(k.iv)
	if k.data != nil {
		k.data.Wipe()
	}
	k.key, k.iv = nil, nil
}
