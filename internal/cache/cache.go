package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("cache: key not found")

// Cache is a small key-value store backed by SQLite, used to carry
// session state (credential, user record) across process restarts.
type Cache struct {
	db *sql.DB
}

// DefaultPath returns the default cache path (~/.taskpilot/cache.db)
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".taskpilot", "cache.db"), nil
}

// Open opens or creates the cache database
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return c, nil
}

// OpenDefault opens the cache at the default path
func OpenDefault() (*Cache, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Get returns the value stored under key, or ErrNotFound
func (c *Cache) Get(key string) (string, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Put stores value under key, replacing any previous value
func (c *Cache) Put(key, value string) error {
	_, err := c.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Delete removes key; removing an absent key is not an error
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}
