package vaultfs

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCopy(t *testing.T) {
	v, _ := newTestVFS(t)
	src := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 500)

	f, err := v.OpenFile("/fox.txt", AccessReadWrite, ShareRead, CreateNew)
	require.NoError(t, err)
	n, err := io.Copy(f, strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, int64(len(src)), n)

	pos, err := f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	var out bytes.Buffer
	_, err = io.Copy(&out, f)
	require.NoError(t, err)
	assert.Equal(t, src, out.String())
	require.NoError(t, f.Close())
}

func TestFileAtLeavesCursor(t *testing.T) {
	v, _ := newTestVFS(t)
	f, err := v.OpenFile("/f", AccessReadWrite, ShareRead, CreateNew)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("0123456789")
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("AB"), 2)
	require.NoError(t, err)

	pos, err := f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	buf := make([]byte, 4)
	_, err = f.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "1AB4", string(buf))

	_, err = f.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileStat(t *testing.T) {
	v, _ := newTestVFS(t)
	f, err := v.OpenFile("/docs.txt", AccessReadWrite, ShareRead, CreateNew)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Truncate(2))

	fi, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "docs.txt", fi.Name())
	assert.Equal(t, int64(2), fi.Size())
	assert.False(t, fi.IsDir())
	assert.Equal(t, "-rw-r--r--", fi.Mode().String())
	assert.IsType(t, Attributes{}, fi.Sys())
	assert.Equal(t, "/docs.txt", f.Name())
	assert.NotEqual(t, InvalidHandle, f.Handle())

	dir := newFileInfo("/d", Attributes{Flags: AttrDirectory | AttrReadOnly})
	assert.True(t, dir.Mode().IsDir())
	assert.Equal(t, "dr-xr-xr-x", dir.Mode().String())
}

func TestOpenFileErrors(t *testing.T) {
	v, _ := newTestVFS(t)
	_, err := v.OpenFile("/missing", AccessRead, ShareRead, OpenExisting)
	assert.Equal(t, StatusNotFound, StatusOf(err))
	_, err = v.OpenFile("bad", AccessRead, ShareRead, OpenAlways)
	assert.Equal(t, StatusInvalidParam, StatusOf(err))
}
