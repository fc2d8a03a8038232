// manager_test.go - Tests for the output store
package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) (*OutputStore, string) {
	dir := t.TempDir()
	store, err := NewOutputStore(dir)
	require.NoError(t, err)
	return store, dir
}

func writeFile(t *testing.T, s *OutputStore, name, content string) {
	w, err := s.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestNewOutputStore(t *testing.T) {
	t.Run("creates output directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "output")

		_, err := NewOutputStore(dir)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestOutputStore_Create(t *testing.T) {
	t.Run("writes through to disk", func(t *testing.T) {
		store, dir := createTestStore(t)
		writeFile(t, store, "a.csv", "hello")

		data, err := os.ReadFile(filepath.Join(dir, "a.csv"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("truncates existing file", func(t *testing.T) {
		store, dir := createTestStore(t)
		writeFile(t, store, "a.csv", "a much longer first version")
		writeFile(t, store, "a.csv", "v2")

		data, err := os.ReadFile(filepath.Join(dir, "a.csv"))
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("creates subdirectories", func(t *testing.T) {
		store, dir := createTestStore(t)
		writeFile(t, store, "sub/b.txt", "x")

		_, err := os.Stat(filepath.Join(dir, "sub", "b.txt"))
		assert.NoError(t, err)
	})
}

func TestOutputStore_ExistsSizeRemove(t *testing.T) {
	store, _ := createTestStore(t)
	writeFile(t, store, "a.json", "12345")

	ok, err := store.Exists("a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	size, err := store.Size("a.json")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	require.NoError(t, store.Remove("a.json"))
	ok, err = store.Exists("a.json")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing twice is fine
	assert.NoError(t, store.Remove("a.json"))

	_, err = store.Size("a.json")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOutputStore_Purge(t *testing.T) {
	store, _ := createTestStore(t)
	writeFile(t, store, "one.txt", "1")
	writeFile(t, store, "two.TXT", "2")
	writeFile(t, store, "keep.csv", "3")
	writeFile(t, store, "sub/nested.txt", "4")

	n, err := store.Purge(".txt")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.csv"}, names)

	ok, err := store.Exists("sub/nested.txt")
	require.NoError(t, err)
	assert.True(t, ok, "purge only touches the top level")
}

func TestOutputStore_LocalPath(t *testing.T) {
	store, dir := createTestStore(t)
	assert.Equal(t, filepath.Join(dir, "x.duckdb"), store.LocalPath("x.duckdb"))
}
