package categories

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/existflow/taskpilot/internal/api"
	"github.com/existflow/taskpilot/internal/model"
)

// Input is the create/update payload for a category
type Input struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Registry mirrors the server-owned category records in a local slice
type Registry struct {
	api *api.Client
	log *zap.Logger

	mu      sync.RWMutex
	items   []model.Category
	lastErr string
}

// NewRegistry creates a category registry
func NewRegistry(client *api.Client, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{api: client, log: log}
}

// List fetches all categories; the local slice is replaced only on success
func (r *Registry) List(ctx context.Context) error {
	var resp struct {
		Data []model.Category `json:"data"`
	}
	if err := r.api.Get(ctx, "/categories", nil, &resp); err != nil {
		r.fail(err, "Failed to fetch categories")
		return err
	}

	r.mu.Lock()
	r.items = resp.Data
	r.mu.Unlock()
	r.clearErr()
	return nil
}

// Create submits a new category and appends it locally
func (r *Registry) Create(ctx context.Context, input Input) (model.Category, error) {
	var resp struct {
		Data model.Category `json:"data"`
	}
	if err := r.api.Post(ctx, "/categories", input, &resp); err != nil {
		r.fail(err, "Failed to create category")
		return model.Category{}, err
	}

	r.mu.Lock()
	r.items = append(r.items, resp.Data)
	r.mu.Unlock()
	r.clearErr()
	return resp.Data, nil
}

// Update submits changes and replaces the local record by id
func (r *Registry) Update(ctx context.Context, id int64, input Input) (model.Category, error) {
	var resp struct {
		Data model.Category `json:"data"`
	}
	if err := r.api.Put(ctx, fmt.Sprintf("/categories/%d", id), input, &resp); err != nil {
		r.fail(err, "Failed to update category")
		return model.Category{}, err
	}

	r.mu.Lock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i] = resp.Data
			break
		}
	}
	r.mu.Unlock()
	r.clearErr()
	return resp.Data, nil
}

// Delete removes the category on the server, then locally. Whether
// referencing tasks keep their category_id is a backend concern.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	if err := r.api.Delete(ctx, fmt.Sprintf("/categories/%d", id)); err != nil {
		r.fail(err, "Failed to delete category")
		return err
	}

	r.mu.Lock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	r.clearErr()
	return nil
}

// All returns a copy of the local category slice
func (r *Registry) All() []model.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Category, len(r.items))
	copy(out, r.items)
	return out
}

// Find looks up a category by id
func (r *Registry) Find(id int64) (model.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.items {
		if r.items[i].ID == id {
			return r.items[i], true
		}
	}
	return model.Category{}, false
}

// LastError returns the message of the most recent failed operation
func (r *Registry) LastError() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *Registry) fail(err error, fallback string) {
	msg := api.Message(err, fallback)
	r.mu.Lock()
	r.lastErr = msg
	r.mu.Unlock()
	r.log.Error(fallback, zap.Error(err))
}

func (r *Registry) clearErr() {
	r.mu.Lock()
	r.lastErr = ""
	r.mu.Unlock()
}
