package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/taskpilot/internal/api"
	"github.com/existflow/taskpilot/internal/apitest"
	"github.com/existflow/taskpilot/internal/cache"
)

func setupManager(t *testing.T) (*apitest.Server, *Manager, *cache.Cache) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	c := openTestCache(t)
	store := NewStore(c, nil)
	client := api.NewClient(srv.URL(), store, nil)
	return srv, NewManager(client, store, nil), c
}

func TestLoginEstablishesSession(t *testing.T) {
	srv, m, c := setupManager(t)
	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})

	err := m.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "hunter2"})
	require.NoError(t, err)

	assert.True(t, m.IsAuthenticated())
	require.NotNil(t, m.CurrentUser())
	assert.Equal(t, "ada@example.com", m.CurrentUser().Email)
	assert.Empty(t, m.LastError())

	// Both halves of the session are persisted
	_, err = c.Get("access_token")
	assert.NoError(t, err)
	_, err = c.Get("user")
	assert.NoError(t, err)
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv, m, _ := setupManager(t)
	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})

	err := m.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)

	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, "Invalid credentials", m.LastError())
}

func TestLoginRollsBackWhenProfileFetchFails(t *testing.T) {
	srv, m, c := setupManager(t)
	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})

	// The credential exchange succeeds but the profile fetch cannot
	srv.SetRejectAll(true)

	err := m.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "hunter2"})
	require.Error(t, err)

	// No partial commit: the session looks exactly like before the call
	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, m.CurrentUser())
	_, err = c.Get("access_token")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	_, m, _ := setupManager(t)

	err := m.Register(context.Background(), Registration{Name: "Ada"})
	require.Error(t, err)

	var ve *api.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, "The given data was invalid.", m.LastError())
}

func TestRegisterLogsIn(t *testing.T) {
	_, m, _ := setupManager(t)

	err := m.Register(context.Background(), Registration{
		Name:                 "Ada",
		Email:                "ada@example.com",
		Password:             "hunter2",
		PasswordConfirmation: "hunter2",
	})
	require.NoError(t, err)
	assert.True(t, m.IsAuthenticated())
}

func TestLogoutClearsEvenWhenServerFails(t *testing.T) {
	srv, m, c := setupManager(t)
	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})
	require.NoError(t, m.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "hunter2"}))

	srv.SetRejectAll(true)
	srv.SetFailRefresh(true)

	m.Logout(context.Background())

	assert.False(t, m.IsAuthenticated())
	_, err := c.Get("access_token")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = c.Get("user")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	srv, m, _ := setupManager(t)
	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})
	require.NoError(t, m.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "hunter2"}))

	err := m.ChangePassword(context.Background(), "wrong", "newpass123")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", m.LastError())
}

func TestRolePredicates(t *testing.T) {
	srv, m, _ := setupManager(t)
	srv.SeedUser("Root", "root@example.com", "hunter2", []string{"user", "admin"})
	require.NoError(t, m.Login(context.Background(), Credentials{Email: "root@example.com", Password: "hunter2"}))

	assert.True(t, m.HasRole("user"))
	assert.True(t, m.IsAdmin())
	assert.False(t, m.HasRole("moderator"))
}

func TestRestoreSurvivesRestart(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})

	c := openTestCache(t)

	store := NewStore(c, nil)
	m := NewManager(api.NewClient(srv.URL(), store, nil), store, nil)
	require.NoError(t, m.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "hunter2"}))

	// New process, same cache
	store2 := NewStore(c, nil)
	m2 := NewManager(api.NewClient(srv.URL(), store2, nil), store2, nil)
	require.NoError(t, m2.Restore())

	assert.True(t, m2.IsAuthenticated())
	assert.Equal(t, "ada@example.com", m2.CurrentUser().Email)
}
