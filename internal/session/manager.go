package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/existflow/taskpilot/internal/api"
	"github.com/existflow/taskpilot/internal/model"
)

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the account-creation payload
type Registration struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
}

// Manager composes the token store and the gateway into the login,
// registration and password operations, and derives authorization
// predicates from the session's role claims.
type Manager struct {
	api   *api.Client
	store *Store
	log   *zap.Logger

	mu      sync.RWMutex
	lastErr string
}

// NewManager creates a session manager
func NewManager(client *api.Client, store *Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{api: client, store: store, log: log}
}

// Login exchanges credentials for a bearer token, then fetches the user
// profile. Login is complete only when both calls succeed; on failure of
// either step the credential and user are left in their pre-call state.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	return m.authenticate(ctx, "/auth/login", creds, "Login failed")
}

// Register creates an account and logs in, with the same two-step commit
// rules as Login.
func (m *Manager) Register(ctx context.Context, data Registration) error {
	return m.authenticate(ctx, "/auth/register", data, "Registration failed")
}

func (m *Manager) authenticate(ctx context.Context, path string, payload any, fallback string) error {
	prevToken := m.store.Token()
	prevUser := m.store.User()

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := m.api.Post(ctx, path, payload, &resp); err != nil {
		m.fail(err, fallback)
		return err
	}

	if err := m.store.SetToken(resp.AccessToken); err != nil {
		m.store.reset(prevToken, prevUser)
		m.fail(err, fallback)
		return err
	}

	if err := m.fetchUser(ctx); err != nil {
		// Do not partially commit: profile fetch failed, so the session
		// must look exactly like it did before the call.
		m.store.reset(prevToken, prevUser)
		m.fail(err, fallback)
		return err
	}

	m.clearErr()
	m.log.Info("session established", zap.String("email", m.store.User().Email))
	return nil
}

// fetchUser loads the full profile and persists it
func (m *Manager) fetchUser(ctx context.Context) error {
	var resp struct {
		Data model.User `json:"data"`
	}
	if err := m.api.Get(ctx, "/auth/me", nil, &resp); err != nil {
		return err
	}
	return m.store.SetUser(&resp.Data)
}

// Logout notifies the server best-effort, then clears local session state
// unconditionally. Logout never fails to clear local state.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
		m.log.Warn("logout notification failed", zap.Error(err))
	}
	if err := m.store.Clear(); err != nil {
		m.log.Warn("failed to clear cached session", zap.Error(err))
	}
	m.clearErr()
}

// RequestPasswordReset asks the server to email a reset token
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	if err := m.api.Post(ctx, "/auth/forgot-password", payload, nil); err != nil {
		m.fail(err, "Failed to request password reset")
		return err
	}
	m.clearErr()
	return nil
}

// ResetPassword redeems a reset token for a new password
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) error {
	payload := map[string]string{"token": token, "password": newPassword}
	if err := m.api.Post(ctx, "/auth/reset-password", payload, nil); err != nil {
		m.fail(err, "Failed to reset password")
		return err
	}
	m.clearErr()
	return nil
}

// ChangePassword changes the password of the logged-in user
func (m *Manager) ChangePassword(ctx context.Context, current, newPassword string) error {
	payload := map[string]string{"current_password": current, "new_password": newPassword}
	if err := m.api.Post(ctx, "/auth/change-password", payload, nil); err != nil {
		m.fail(err, "Failed to change password")
		return err
	}
	m.clearErr()
	return nil
}

// Restore loads a persisted session from the local cache at startup
func (m *Manager) Restore() error {
	return m.store.Restore()
}

// IsAuthenticated reports whether a complete session is present
func (m *Manager) IsAuthenticated() bool {
	return m.store.Token() != "" && m.store.User() != nil
}

// CurrentUser returns the logged-in user, or nil
func (m *Manager) CurrentUser() *model.User {
	return m.store.User()
}

// HasRole reports whether the logged-in user carries the given role claim
func (m *Manager) HasRole(role string) bool {
	u := m.store.User()
	return u != nil && u.HasRole(role)
}

// IsAdmin reports whether the logged-in user carries the "admin" role
func (m *Manager) IsAdmin() bool {
	return m.HasRole("admin")
}

// LastError returns the human-readable message of the most recent failed
// operation, or "" after a success.
func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) fail(err error, fallback string) {
	msg := api.Message(err, fallback)
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
	m.log.Error(fallback, zap.Error(err))
}

func (m *Manager) clearErr() {
	m.mu.Lock()
	m.lastErr = ""
	m.mu.Unlock()
}
