//go:build unix

package vaultfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackingFileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.vfs")

	first, err := New(nil)
	require.NoError(t, err)
	defer first.Release()
	require.NoError(t, first.Create(path, &CreateOptions{Name: "locked", BlockSize: testBlockSize}))

	second, err := New(nil)
	require.NoError(t, err)
	defer second.Release()
	err = second.Open(path, nil)
	assert.Equal(t, StatusInUse, StatusOf(err))
	assert.False(t, second.IsOpen())

	require.NoError(t, first.Close())
	require.NoError(t, second.Open(path, nil))
	assert.Equal(t, StatusDuplicate, StatusOf(first.Create(path, &CreateOptions{Name: "again"})))
}
