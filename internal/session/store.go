package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/existflow/taskpilot/internal/cache"
	"github.com/existflow/taskpilot/internal/model"
)

const (
	keyAccessToken = "access_token"
	keyUser        = "user"
)

// Store holds the current credential and user record, persisted through
// the local cache so a session survives process restarts. It implements
// api.TokenSource.
type Store struct {
	mu    sync.RWMutex
	token string
	user  *model.User
	cache *cache.Cache
	log   *zap.Logger
}

// NewStore creates a session store backed by the given cache
func NewStore(c *cache.Cache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{cache: c, log: log}
}

// Token returns the current credential, or "" when logged out
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores and persists a new credential
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	if token == "" {
		return s.cache.Delete(keyAccessToken)
	}
	return s.cache.Put(keyAccessToken, token)
}

// User returns the current user record, or nil when logged out
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser stores and persists the user record
func (s *Store) SetUser(u *model.User) error {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	if u == nil {
		return s.cache.Delete(keyUser)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return s.cache.Put(keyUser, string(data))
}

// Clear wipes the credential and user record, in memory and on disk
func (s *Store) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(keyAccessToken); err != nil {
		return err
	}
	return s.cache.Delete(keyUser)
}

// reset puts the store back into a known state, used to roll back a
// partially committed login.
func (s *Store) reset(token string, user *model.User) {
	if err := s.SetToken(token); err != nil {
		s.log.Warn("failed to restore credential", zap.Error(err))
	}
	if err := s.SetUser(user); err != nil {
		s.log.Warn("failed to restore user record", zap.Error(err))
	}
}

// persistedUser tolerates the legacy single-role schema on disk
type persistedUser struct {
	model.User
	LegacyRole string `json:"role,omitempty"`
}

// decodeUser parses a cached user record, migrating the legacy
// `role: string` shape to `roles: []string`. The second return value
// reports whether a migration happened.
func decodeUser(data []byte) (*model.User, bool, error) {
	var pu persistedUser
	if err := json.Unmarshal(data, &pu); err != nil {
		return nil, false, err
	}

	migrated := false
	if len(pu.Roles) == 0 && pu.LegacyRole != "" {
		pu.Roles = []string{pu.LegacyRole}
		migrated = true
	}

	u := pu.User
	return &u, migrated, nil
}

// Restore loads persisted session state at startup. Both the credential
// and the user record must exist for the session to be restored; user
// records persisted under the legacy single-role schema are rewritten in
// place to the multi-role schema.
func (s *Store) Restore() error {
	if s.cache == nil {
		return nil
	}

	token, err := s.cache.Get(keyAccessToken)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cached credential: %w", err)
	}

	raw, err := s.cache.Get(keyUser)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cached user: %w", err)
	}

	u, migrated, err := decodeUser([]byte(raw))
	if err != nil {
		s.log.Warn("discarding unreadable cached user record", zap.Error(err))
		return s.Clear()
	}

	s.mu.Lock()
	s.token = token
	s.user = u
	s.mu.Unlock()

	if migrated {
		s.log.Info("migrated cached user record to multi-role schema", zap.Int64("user_id", u.ID))
		if err := s.SetUser(u); err != nil {
			return err
		}
	}

	return nil
}
