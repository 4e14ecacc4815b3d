package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/taskpilot/internal/cache"
	"github.com/existflow/taskpilot/internal/model"
)

var testUser = model.User{ID: 1, Email: "ada@example.com", Name: "Ada", Roles: []string{"user"}}

func openTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func TestRestoreRoundtrip(t *testing.T) {
	c := openTestCache(t)

	first := NewStore(c, nil)
	require.NoError(t, first.SetToken("tok-1"))
	require.NoError(t, first.SetUser(&testUser))

	second := NewStore(c, nil)
	require.NoError(t, second.Restore())

	assert.Equal(t, "tok-1", second.Token())
	require.NotNil(t, second.User())
	assert.Equal(t, "ada@example.com", second.User().Email)
	assert.Equal(t, []string{"user"}, second.User().Roles)
}

func TestRestoreMigratesLegacyRole(t *testing.T) {
	c := openTestCache(t)

	// A record persisted by an old build, before roles became a list
	require.NoError(t, c.Put("access_token", "tok-1"))
	require.NoError(t, c.Put("user", `{"id":7,"email":"old@example.com","name":"Old","role":"admin"}`))

	s := NewStore(c, nil)
	require.NoError(t, s.Restore())

	require.NotNil(t, s.User())
	assert.Equal(t, []string{"admin"}, s.User().Roles)
	assert.True(t, s.User().HasRole("admin"))

	// The cached record is rewritten in the new schema
	raw, err := c.Get("user")
	require.NoError(t, err)
	assert.Contains(t, raw, `"roles":["admin"]`)
	assert.NotContains(t, raw, `"role":`)
}

func TestRestoreRolesWinOverLegacyRole(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put("access_token", "tok-1"))
	require.NoError(t, c.Put("user", `{"id":7,"email":"x@example.com","roles":["user"],"role":"admin"}`))

	s := NewStore(c, nil)
	require.NoError(t, s.Restore())

	require.NotNil(t, s.User())
	assert.Equal(t, []string{"user"}, s.User().Roles)
}

func TestRestoreRequiresBothRecords(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("access_token", "tok-1"))

	s := NewStore(c, nil)
	require.NoError(t, s.Restore())

	assert.Empty(t, s.Token(), "a credential without a user record is not a session")
	assert.Nil(t, s.User())
}

func TestRestoreClearsUnreadableUser(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("access_token", "tok-1"))
	require.NoError(t, c.Put("user", `{not json`))

	s := NewStore(c, nil)
	require.NoError(t, s.Restore())

	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())

	_, err := c.Get("access_token")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestClearWipesDisk(t *testing.T) {
	c := openTestCache(t)

	s := NewStore(c, nil)
	require.NoError(t, s.SetToken("tok-1"))
	require.NoError(t, s.SetUser(&testUser))
	require.NoError(t, s.Clear())

	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())

	_, err := c.Get("access_token")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = c.Get("user")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}
