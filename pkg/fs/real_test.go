package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recfile/pkg/fs"
)

func Test_Real_Exists_Reports_Files_And_Dirs_When_Present(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	dir := t.TempDir()
	file := filepath.Join(dir, "records.db")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	for _, tc := range []struct {
		name string
		path string
		want bool
	}{
		{name: "missing", path: filepath.Join(dir, "nope.db"), want: false},
		{name: "file", path: file, want: true},
		{name: "dir", path: dir, want: true},
	} {
		got, err := fsys.Exists(tc.path)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func Test_Real_OpenFile_Supports_Positional_IO_When_Opened_ReadWrite(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "records.db")

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	require.NoError(t, err)

	defer func() { _ = f.Close() }()

	_, err = f.WriteAt([]byte("tail"), 8)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("head"), 0)
	require.NoError(t, err)

	buf := make([]byte, 12)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("head\x00\x00\x00\x00tail"), buf)

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size())

	_, err = fsys.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	require.ErrorIs(t, err, os.ErrExist)
}

func Test_Real_Rename_Replaces_Target_When_Target_Exists(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	dir := t.TempDir()
	src := filepath.Join(dir, "new.db")
	dst := filepath.Join(dir, "records.db")

	require.NoError(t, os.WriteFile(src, []byte("new"), 0o600))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	require.NoError(t, fsys.Rename(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	_, err = fsys.Stat(src)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, fsys.Remove(dst))

	exists, err := fsys.Exists(dst)
	require.NoError(t, err)
	assert.False(t, exists)
}
