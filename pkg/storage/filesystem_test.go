package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := s.Save(filepath.Join("SKU1", "SKU1_001.jpg"), []byte("payload"))
	require.NoError(t, err)
	assert.FileExists(t, s.Path(name))

	f, err := s.Open(filepath.Join("SKU1", "SKU1_001.jpg"))
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), info.Size())
}

func TestLocalStorageRemoveDir(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save(filepath.Join("SKU1", "a.jpg"), []byte("a"))
	require.NoError(t, err)
	_, err = s.Save(filepath.Join("SKU1", "b.jpg"), []byte("b"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveDir("SKU1"))
	assert.NoFileExists(t, s.Path(filepath.Join("SKU1", "a.jpg")))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Save("stale.jpg", []byte("old"))
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(s.Path("stale.jpg"), old, old))

	_, err = s.Save("fresh.jpg", []byte("new"))
	require.NoError(t, err)

	removed, err := s.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	assert.NoFileExists(t, s.Path("stale.jpg"))
	assert.FileExists(t, s.Path("fresh.jpg"))
}
