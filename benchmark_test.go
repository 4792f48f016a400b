package vaultfs

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"testing"
)

// Benchmark per-block data cipher throughput
func BenchmarkDataCipher(b *testing.B) {
	for _, tc := range dataCiphers() {
		b.Run(tc.name, func(b *testing.B) {
			c, err := NewCipherProvider(tc.params)
			if err != nil {
				b.Fatalf("NewCipherProvider failed: %v", err)
			}
			key, _ := GenerateRandom(MasterKeyLen)
			iv, _ := GenerateRandom(DataIVLen)
			if err := c.SetKey(key, iv); err != nil {
				b.Fatalf("SetKey failed: %v", err)
			}

			buf := make([]byte, DefaultBlockSize)
			rand.Read(buf)
			b.SetBytes(int64(len(buf)))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if err := c.Encrypt(buf, uint64(i)); err != nil {
					b.Fatalf("encryption failed: %v", err)
				}
			}
		})
	}
}

// Benchmark password key derivation
func BenchmarkKeyDerivation(b *testing.B) {
	params := []struct {
		name string
		p    CipherParams
	}{
		{"pbkdf2-sha256", DefaultKeyCipher()},
		{"argon2id-64MB", CipherParams{Mode: KeyModeArgon2id, ParamA: 3, ParamB: 64 * 1024}},
	}

	for _, tc := range params {
		b.Run(tc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := DeriveKey([]byte("benchmark"), tc.p); err != nil {
					b.Fatalf("key derivation failed: %v", err)
				}
			}
		})
	}
}

// Benchmark sequential against parallel block processing
func BenchmarkProcessBlocks(b *testing.B) {
	c, err := NewCipherProvider(DefaultDataCipher())
	if err != nil {
		b.Fatal(err)
	}
	key, _ := GenerateRandom(MasterKeyLen)
	iv, _ := GenerateRandom(DataIVLen)
	if err := c.SetKey(key, iv); err != nil {
		b.Fatal(err)
	}

	configs := []struct {
		name string
		cfg  ParallelConfig
	}{
		{"sequential", ParallelConfig{}},
		{"parallel", DefaultParallelConfig()},
	}

	for _, size := range []int{64 * 1024, 1024 * 1024, 8 * 1024 * 1024} {
		buf := make([]byte, size)
		rand.Read(buf)
		for _, tc := range configs {
			b.Run(fmt.Sprintf("%s/%s", formatSize(size), tc.name), func(b *testing.B) {
				b.SetBytes(int64(size))
				for i := 0; i < b.N; i++ {
					if err := processBlocks(tc.cfg, buf, DefaultBlockSize, 0, c.Encrypt); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// Benchmark file write and read through the container
func BenchmarkFileWriteRead(b *testing.B) {
	sizes := []int{
		4 * 1024,    // 4 KB
		256 * 1024,  // 256 KB
		1024 * 1024, // 1 MB
	}

	for _, size := range sizes {
		b.Run(formatSize(size), func(b *testing.B) {
			v := newBenchVFS(b)
			data := make([]byte, size)
			rand.Read(data)
			got := make([]byte, size)

			b.SetBytes(int64(size) * 2)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				h, err := v.FileCreate("/bench.bin", 0, AccessReadWrite, ShareNone, CreateAlways, 0)
				if err != nil {
					b.Fatalf("FileCreate failed: %v", err)
				}
				if _, err := v.FileWrite(h, data, 0); err != nil {
					b.Fatalf("write failed: %v", err)
				}
				if _, err := v.FileRead(h, got, 0); err != nil {
					b.Fatalf("read failed: %v", err)
				}
				if err := v.FileClose(h); err != nil {
					b.Fatalf("close failed: %v", err)
				}
			}
		})
	}
}

// Benchmark container writes against the OS file system
func BenchmarkFileWriteOS(b *testing.B) {
	v, err := New(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer v.Release()

	opts := encryptedOptions("benchmark")
	opts.BlockSize = DefaultBlockSize
	if err := v.Create(filepath.Join(b.TempDir(), "bench.vfs"), opts); err != nil {
		b.Fatalf("Create failed: %v", err)
	}

	data := make([]byte, 1024*1024)
	rand.Read(data)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		f, err := v.OpenFile("/bench.bin", AccessWrite, ShareNone, CreateAlways)
		if err != nil {
			b.Fatalf("OpenFile failed: %v", err)
		}
		if _, err := f.Write(data); err != nil {
			b.Fatalf("write failed: %v", err)
		}
		if err := f.Close(); err != nil {
			b.Fatalf("close failed: %v", err)
		}
	}
}

func formatSize(size int) string {
	if size < 1024 {
		return fmt.Sprintf("%dB", size)
	}
	if size < 1024*1024 {
		return fmt.Sprintf("%dKB", size/1024)
	}
	return fmt.Sprintf("%dMB", size/(1024*1024))
}

// newBenchVFS opens an encrypted container with the default block size
func newBenchVFS(tb testing.TB) *VirtualFS {
	tb.Helper()
	v, err := New(testConfig(newMemFS(tb)))
	if err != nil {
		tb.Fatalf("New failed: %v", err)
	}
	opts := encryptedOptions("benchmark")
	opts.BlockSize = DefaultBlockSize
	if err := v.Create("/bench.vfs", opts); err != nil {
		tb.Fatalf("Create failed: %v", err)
	}
	tb.Cleanup(func() { v.Release() })
	return v
}
