package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/absfs/vaultfs"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const keyringService = "vaultctl"

// readPassword reads a password from the terminal without echoing
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readPasswordConfirm reads a new password twice and ensures they match
func readPasswordConfirm() ([]byte, error) {
	if pw := passwordFromEnv("VAULTFS_NEW_PASSWORD"); pw != nil {
		return pw, nil
	}
	first, err := readPassword("New password: ")
	if err != nil {
		return nil, err
	}
	second, err := readPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer vaultfs.ClearBytes(second)
	if subtle.ConstantTimeCompare(first, second) != 1 {
		vaultfs.ClearBytes(first)
		return nil, errors.New("passwords do not match")
	}
	return first, nil
}

// passwordFromEnv returns a copy of the variable, or nil when unset
func passwordFromEnv(name string) []byte {
	pw := os.Getenv(name)
	if pw == "" {
		return nil
	}
	return []byte(pw)
}

// keyringAccount identifies a container in the OS keyring by absolute path
func keyringAccount(image string) string {
	if abs, err := filepath.Abs(image); err == nil {
		return abs
	}
	return image
}

func savePassword(image string, password []byte) error {
	return keyring.Set(keyringService, keyringAccount(image), string(password))
}

func keyringPassword(image string) []byte {
	pw, err := keyring.Get(keyringService, keyringAccount(image))
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logger.Debug("keyring lookup failed", "image", image, "err", err)
		}
		return nil
	}
	return []byte(pw)
}

func forgetPassword(image string) error {
	err := keyring.Delete(keyringService, keyringAccount(image))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
