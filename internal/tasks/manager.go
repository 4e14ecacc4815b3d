package tasks

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/existflow/taskpilot/internal/api"
	"github.com/existflow/taskpilot/internal/model"
)

// CreateInput is the task-creation payload. Status is server-assigned
// (new tasks default to todo).
type CreateInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Priority    model.Priority `json:"priority,omitempty"`
	CategoryID  *int64         `json:"category_id,omitempty"`
	DueDate     string         `json:"due_date,omitempty"`
}

// Patch is a partial update; nil fields are left untouched by the server
type Patch struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	Priority    *model.Priority `json:"priority,omitempty"`
	Status      *model.Status   `json:"status,omitempty"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	DueDate     *string         `json:"due_date,omitempty"`
}

// Manager owns the canonical in-memory active and archived collections
// and enforces the task state-transition rules. The server is
// authoritative: every mutation reconciles local state from the returned
// task, never from the request.
type Manager struct {
	api *api.Client
	log *zap.Logger

	mu       sync.RWMutex
	active   []model.Task
	archived []model.Task
	lastErr  string
}

// NewManager creates a task lifecycle manager
func NewManager(client *api.Client, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{api: client, log: log}
}

// ListActive fetches the active tasks, forwarding filters verbatim as
// query parameters. The collection is replaced only on success.
func (m *Manager) ListActive(ctx context.Context, filters map[string]string) error {
	query := url.Values{}
	for k, v := range filters {
		query.Set(k, v)
	}

	var resp struct {
		Data []model.Task `json:"data"`
	}
	if err := m.api.Get(ctx, "/tasks", query, &resp); err != nil {
		m.fail(err, "Failed to fetch tasks")
		return err
	}

	m.mu.Lock()
	m.active = resp.Data
	m.mu.Unlock()
	m.clearErr()
	return nil
}

// ListArchived fetches the archived tasks; the collection is replaced
// only on success.
func (m *Manager) ListArchived(ctx context.Context) error {
	var resp struct {
		Data []model.Task `json:"data"`
	}
	if err := m.api.Get(ctx, "/tasks/archived", nil, &resp); err != nil {
		m.fail(err, "Failed to fetch archived tasks")
		return err
	}

	m.mu.Lock()
	m.archived = resp.Data
	m.mu.Unlock()
	m.clearErr()
	return nil
}

// Create submits a new task. The result is not inserted into the local
// collection; callers refresh or append explicitly.
func (m *Manager) Create(ctx context.Context, input CreateInput) (model.Task, error) {
	var resp struct {
		Data model.Task `json:"data"`
	}
	if err := m.api.Post(ctx, "/tasks", input, &resp); err != nil {
		m.fail(err, "Failed to create task")
		return model.Task{}, err
	}
	m.clearErr()
	return resp.Data, nil
}

// Update submits a partial update and reconciles local collection
// membership from the returned status: an archived result moves the task
// into the archived collection, anything else moves it into active. The
// upsert inserts when the task was not represented locally yet.
func (m *Manager) Update(ctx context.Context, id int64, patch Patch) (model.Task, error) {
	var resp struct {
		Data model.Task `json:"data"`
	}
	if err := m.api.Put(ctx, fmt.Sprintf("/tasks/%d", id), patch, &resp); err != nil {
		m.fail(err, "Failed to update task")
		return model.Task{}, err
	}

	t := resp.Data
	m.mu.Lock()
	if t.Status == model.StatusArchived {
		m.active = removeByID(m.active, t.ID)
		m.archived = upsert(m.archived, t)
	} else {
		m.archived = removeByID(m.archived, t.ID)
		m.active = upsert(m.active, t)
	}
	m.mu.Unlock()

	m.clearErr()
	return t, nil
}

// SetStatus updates only the status field
func (m *Manager) SetStatus(ctx context.Context, id int64, status model.Status) (model.Task, error) {
	return m.Update(ctx, id, Patch{Status: &status})
}

// ToggleComplete flips a task between completed and todo. The task must
// already be present in the active collection; completion toggling is
// only meaningful for tasks the client currently tracks as active.
func (m *Manager) ToggleComplete(ctx context.Context, id int64) (model.Task, error) {
	m.mu.RLock()
	t, ok := findByID(m.active, id)
	m.mu.RUnlock()
	if !ok {
		err := &api.NotFoundError{Resource: "task", ID: id}
		m.fail(err, "Failed to toggle task completion")
		return model.Task{}, err
	}

	next := model.StatusCompleted
	if t.Status == model.StatusCompleted {
		next = model.StatusTodo
	}
	return m.SetStatus(ctx, id, next)
}

// Archive moves a task into the archived collection. The server records
// previous_status from the task's current status before overwriting it.
func (m *Manager) Archive(ctx context.Context, id int64) (model.Task, error) {
	return m.SetStatus(ctx, id, model.StatusArchived)
}

// Unarchive restores a task to the status it held when archived, or todo
// when no previous status was recorded. The task must be present in the
// archived collection; a previous status the client never observed
// cannot be recovered.
func (m *Manager) Unarchive(ctx context.Context, id int64) (model.Task, error) {
	m.mu.RLock()
	t, ok := findByID(m.archived, id)
	m.mu.RUnlock()
	if !ok {
		err := &api.NotFoundError{Resource: "archived task", ID: id}
		m.fail(err, "Failed to unarchive task")
		return model.Task{}, err
	}

	target := model.StatusTodo
	if t.PreviousStatus != nil && *t.PreviousStatus != "" {
		target = *t.PreviousStatus
	}
	return m.SetStatus(ctx, id, target)
}

// Delete removes the task on the server, then from whichever local
// collection holds it. Local absence is not an error.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.api.Delete(ctx, fmt.Sprintf("/tasks/%d", id)); err != nil {
		m.fail(err, "Failed to delete task")
		return err
	}

	m.mu.Lock()
	m.active = removeByID(m.active, id)
	m.archived = removeByID(m.archived, id)
	m.mu.Unlock()

	m.clearErr()
	return nil
}

// Active returns a copy of the active collection
func (m *Manager) Active() []model.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Task, len(m.active))
	copy(out, m.active)
	return out
}

// Archived returns a copy of the archived collection
func (m *Manager) Archived() []model.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Task, len(m.archived))
	copy(out, m.archived)
	return out
}

// FindActive looks up a task in the active collection
func (m *Manager) FindActive(id int64) (model.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findByID(m.active, id)
}

// FindArchived looks up a task in the archived collection
func (m *Manager) FindArchived(id int64) (model.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return findByID(m.archived, id)
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
