package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/existflow/taskpilot/internal/api"
	"github.com/existflow/taskpilot/internal/assistant"
	"github.com/existflow/taskpilot/internal/cache"
	"github.com/existflow/taskpilot/internal/categories"
	"github.com/existflow/taskpilot/internal/config"
	"github.com/existflow/taskpilot/internal/logger"
	"github.com/existflow/taskpilot/internal/session"
	"github.com/existflow/taskpilot/internal/tasks"
)

// App bundles the wired services for one command invocation
type App struct {
	Config     *config.Config
	Cache      *cache.Cache
	Session    *session.Manager
	Tasks      *tasks.Manager
	Categories *categories.Registry
	Chat       *assistant.Chat
}

// newApp wires config, cache, session and the API gateway together.
// A persisted session is restored before anything else runs.
func newApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.L().Warn("failed to load config, using defaults", zap.Error(err))
		cfg = config.DefaultConfig()
	}

	c, err := cache.OpenDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	log := logger.L()
	store := session.NewStore(c, log)
	client := api.NewClient(cfg.ServerURL, store, log)
	client.SetAuthExpiredHandler(func() {
		fmt.Println("⚠️  Session expired. Run 'taskpilot login' to sign in again.")
	})

	sess := session.NewManager(client, store, log)
	if err := sess.Restore(); err != nil {
		log.Warn("failed to restore session", zap.Error(err))
	}

	return &App{
		Config:     cfg,
		Cache:      c,
		Session:    sess,
		Tasks:      tasks.NewManager(client, log),
		Categories: categories.NewRegistry(client, log),
		Chat:       assistant.NewChat(client, log),
	}, nil
}

// Close releases the cache handle
func (a *App) Close() {
	_ = a.Cache.Close()
}

// requireAuth fails fast when no session is present
func (a *App) requireAuth() error {
	if !a.Session.IsAuthenticated() {
		return fmt.Errorf("not logged in, run 'taskpilot login' first")
	}
	return nil
}
