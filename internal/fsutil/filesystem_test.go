package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/bigtracks/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_WriteAtomic(t *testing.T) {
	fsys := OSFileSystem{}
	name := filepath.Join(t.TempDir(), "status.json")

	require.NoError(t, WriteFileAtomic(fsys, name, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(fsys, name, []byte("two"), 0o644))

	data, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	assert.False(t, fsys.Exists(name+TempSuffix))

	require.NoError(t, RemoveIfExists(fsys, name))
	require.NoError(t, RemoveIfExists(fsys, name))
	assert.False(t, fsys.Exists(name))
}

func TestMemoryFileSystem_ModTimeFromClock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	mfs := NewMemoryFileSystem(clock)

	require.NoError(t, mfs.WriteFile("/a/status.json", []byte("x"), 0o644))
	clock.Advance(time.Minute)
	require.NoError(t, WriteFileAtomic(mfs, "/a/other.json", []byte("yz"), 0o644))

	fi, err := mfs.Stat("/a/status.json")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(-time.Minute), fi.ModTime())

	fi, err = mfs.Stat("/a/other.json")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), fi.ModTime())
	assert.Equal(t, int64(2), fi.Size())
	assert.False(t, mfs.Exists("/a/other.json"+TempSuffix))
}

func TestMemoryFileSystem_Errors(t *testing.T) {
	mfs := NewMemoryFileSystem(nil)

	_, err := mfs.ReadFile("/missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = mfs.Stat("/missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorIs(t, mfs.Remove("/missing"), os.ErrNotExist)
	assert.ErrorIs(t, mfs.Rename("/missing", "/b"), os.ErrNotExist)
	assert.True(t, os.IsNotExist(mfs.Remove("/missing")))
}

func TestMemoryFileSystem_WriteCopiesData(t *testing.T) {
	mfs := NewMemoryFileSystem(nil)
	data := []byte("abc")
	require.NoError(t, mfs.WriteFile("f", data, 0o644))
	data[0] = 'X'

	got, err := mfs.ReadFile("./f")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestOr(t *testing.T) {
	assert.Equal(t, OSFileSystem{}, Or(nil))
	mfs := NewMemoryFileSystem(nil)
	assert.Same(t, mfs, Or(mfs))
}
