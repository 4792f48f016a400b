package vaultfs

import (
	"os"
	"testing"

	"github.com/absfs/memfs"
)

const testBlockSize = 512

// testKeyCipher keeps PBKDF2 fast in tests
func testKeyCipher() CipherParams {
	return CipherParams{Mode: KeyModePBKDF2, ParamA: 1000, ParamB: uint32(SHA256)}
}

func newMemFS(t testing.TB) *memfs.FileSystem {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS failed: %v", err)
	}
	return fs
}

// memDevice returns an empty device backed by memfs
func memDevice(t testing.TB) Device {
	t.Helper()
	f, err := newMemFS(t).OpenFile("/dev.img", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func testConfig(fs *memfs.FileSystem) *Config {
	cfg := DefaultConfig()
	cfg.FileSystem = fs
	return cfg
}

func encryptedOptions(password string) *CreateOptions {
	return &CreateOptions{
		Name:       "test-box",
		Password:   []byte(password),
		KeyCipher:  testKeyCipher(),
		DataCipher: DefaultDataCipher(),
		BlockSize:  testBlockSize,
	}
}

// newTestVFS creates and opens an encrypted container at /box.vfs on memfs
func newTestVFS(t testing.TB) (*VirtualFS, *memfs.FileSystem) {
	t.Helper()
	fs := newMemFS(t)
	v, err := New(testConfig(fs))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := v.Create("/box.vfs", encryptedOptions("p1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() { v.Release() })
	return v, fs
}
