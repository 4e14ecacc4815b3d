package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func TestPutGet(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put("access_token", "abc123"))

	got, err := c.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}

func TestPutOverwrites(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put("key", "first"))
	require.NoError(t, c.Put("key", "second"))

	got, err := c.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestGetMissing(t *testing.T) {
	c := openTestCache(t)

	_, err := c.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put("key", "value"))
	require.NoError(t, c.Delete("key"))

	_, err := c.Get("key")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error
	assert.NoError(t, c.Delete("key"))
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put("key", "persisted"))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}
