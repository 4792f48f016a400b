package main

import (
	"errors"
	"fmt"

	"github.com/absfs/vaultfs"
)

// newVFS returns a closed VirtualFS configured from cfg
func newVFS() (*vaultfs.VirtualFS, error) {
	c := vaultfs.DefaultConfig()
	c.Logger = logger
	if cfg.Workers > 0 {
		c.Parallel.MaxWorkers = min(cfg.Workers, 1024)
	}
	return vaultfs.New(c)
}

// openVault opens image, trying VAULTFS_PASSWORD, then the keyring, then
// an interactive prompt once the container turns out to be encrypted
func openVault(image string) (*vaultfs.VirtualFS, error) {
	v, err := newVFS()
	if err != nil {
		return nil, err
	}

	password := passwordFromEnv("VAULTFS_PASSWORD")
	if password == nil && cfg.Keyring {
		password = keyringPassword(image)
	}
	err = v.Open(image, password)
	if errors.Is(err, vaultfs.ErrMissingCipher) {
		if password, err = readPassword("Password: "); err == nil {
			err = v.Open(image, password)
		}
	}
	if password != nil {
		vaultfs.ClearBytes(password)
	}
	if err != nil {
		v.Release()
		return nil, fmt.Errorf("cannot open %s: %w", image, err)
	}
	return v, nil
}

// withVault opens image, runs fn and closes the container
func withVault(image string, fn func(v *vaultfs.VirtualFS) error) error {
	v, err := openVault(image)
	if err != nil {
		return err
	}
	runErr := fn(v)
	closeErr := v.Close()
	v.Release()
	return errors.Join(runErr, closeErr)
}

// parseCipher maps a cipher name onto the data cipher triple
func parseCipher(name string) (vaultfs.CipherParams, error) {
	switch name {
	case "aes-xts", "aes-xts-512":
		return vaultfs.CipherParams{Mode: vaultfs.CipherAESXTS, ParamA: 512}, nil
	case "aes-xts-256":
		return vaultfs.CipherParams{Mode: vaultfs.CipherAESXTS, ParamA: 256}, nil
	case "aes-cbc", "aes-cbc-256":
		return vaultfs.CipherParams{Mode: vaultfs.CipherAESCBC, ParamA: 256}, nil
	case "aes-cbc-128":
		return vaultfs.CipherParams{Mode: vaultfs.CipherAESCBC, ParamA: 128}, nil
	case "chacha20":
		return vaultfs.CipherParams{Mode: vaultfs.CipherChaCha20}, nil
	}
	return vaultfs.CipherParams{}, fmt.Errorf("unknown cipher %q", name)
}

// parseKeyMode maps a key derivation name onto the key triple
func parseKeyMode(name string, iterations uint32) (vaultfs.CipherParams, error) {
	switch name {
	case "pbkdf2", "pbkdf2-sha256":
		return vaultfs.CipherParams{Mode: vaultfs.KeyModePBKDF2, ParamA: iterations, ParamB: uint32(vaultfs.SHA256)}, nil
	case "pbkdf2-sha512":
		return vaultfs.CipherParams{Mode: vaultfs.KeyModePBKDF2, ParamA: iterations, ParamB: uint32(vaultfs.SHA512)}, nil
	case "argon2id":
		return vaultfs.CipherParams{Mode: vaultfs.KeyModeArgon2id, ParamA: 3, ParamB: 64 * 1024}, nil
	}
	return vaultfs.CipherParams{}, fmt.Errorf("unknown key mode %q", name)
}
