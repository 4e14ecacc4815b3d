package tasks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/taskpilot/internal/api"
	"github.com/existflow/taskpilot/internal/apitest"
	"github.com/existflow/taskpilot/internal/model"
	"github.com/existflow/taskpilot/internal/tasks"
)

type memTokens struct {
	token string
}

func (m *memTokens) Token() string { return m.token }

func (m *memTokens) SetToken(token string) error {
	m.token = token
	return nil
}

func (m *memTokens) Clear() error {
	m.token = ""
	return nil
}

func setup(t *testing.T) (*apitest.Server, *tasks.Manager) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})
	tokens := &memTokens{token: srv.IssueToken("ada@example.com")}
	client := api.NewClient(srv.URL(), tokens, nil)
	return srv, tasks.NewManager(client, nil)
}

func TestListActiveExcludesArchived(t *testing.T) {
	srv, m := setup(t)
	srv.SeedTask(model.Task{Title: "active one"})
	srv.SeedTask(model.Task{Title: "shelved", Status: model.StatusArchived})

	require.NoError(t, m.ListActive(context.Background(), nil))

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "active one", active[0].Title)
	assert.Empty(t, m.Archived())
}

func TestListActiveFilters(t *testing.T) {
	srv, m := setup(t)
	srv.SeedTask(model.Task{Title: "urgent", Priority: model.PriorityHigh})
	srv.SeedTask(model.Task{Title: "someday", Priority: model.PriorityLow})

	require.NoError(t, m.ListActive(context.Background(), map[string]string{"priority": "high"}))

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "urgent", active[0].Title)
}

func TestListFailureLeavesCollectionUntouched(t *testing.T) {
	srv, m := setup(t)
	srv.SeedTask(model.Task{Title: "keep me"})
	require.NoError(t, m.ListActive(context.Background(), nil))

	srv.SetRejectAll(true)
	srv.SetFailRefresh(true)

	err := m.ListActive(context.Background(), nil)
	require.Error(t, err)

	assert.Len(t, m.Active(), 1, "a failed fetch must not clobber local state")
	assert.NotEmpty(t, m.LastError())
}

func TestCreateDoesNotInsertLocally(t *testing.T) {
	_, m := setup(t)

	created, err := m.Create(context.Background(), tasks.CreateInput{Title: "fresh"})
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, model.StatusTodo, created.Status)
	assert.Empty(t, m.Active(), "creation leaves the collection to the next refresh")
}

func TestCreateValidation(t *testing.T) {
	_, m := setup(t)

	_, err := m.Create(context.Background(), tasks.CreateInput{Title: "   "})
	require.Error(t, err)

	var ve *api.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "The given data was invalid.", m.LastError())
}

func TestUpdateUpsertsIntoActive(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "before"})

	// Update a task never listed locally: the result is inserted
	title := "after"
	updated, err := m.Update(context.Background(), seeded.ID, tasks.Patch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Title)
	got, ok := m.FindActive(seeded.ID)
	require.True(t, ok)
	assert.Equal(t, "after", got.Title)
}

func TestArchiveMovesBetweenCollections(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "shelve me", Status: model.StatusInProgress})
	require.NoError(t, m.ListActive(context.Background(), nil))

	archived, err := m.Archive(context.Background(), seeded.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusArchived, archived.Status)
	require.NotNil(t, archived.PreviousStatus)
	assert.Equal(t, model.StatusInProgress, *archived.PreviousStatus)

	// The task lives in exactly one collection
	_, inActive := m.FindActive(seeded.ID)
	assert.False(t, inActive)
	_, inArchived := m.FindArchived(seeded.ID)
	assert.True(t, inArchived)
}

func TestUnarchiveRestoresPriorStatus(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "shelve me", Status: model.StatusInProgress})
	require.NoError(t, m.ListActive(context.Background(), nil))

	_, err := m.Archive(context.Background(), seeded.ID)
	require.NoError(t, err)

	restored, err := m.Unarchive(context.Background(), seeded.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusInProgress, restored.Status)
	assert.Nil(t, restored.PreviousStatus)

	_, inActive := m.FindActive(seeded.ID)
	assert.True(t, inActive)
	_, inArchived := m.FindArchived(seeded.ID)
	assert.False(t, inArchived)
}

func TestUnarchiveDefaultsToTodo(t *testing.T) {
	srv, m := setup(t)
	// Archived before this client ever saw it: no previous status on record
	seeded := srv.SeedTask(model.Task{Title: "old shelf", Status: model.StatusArchived})
	require.NoError(t, m.ListArchived(context.Background()))

	restored, err := m.Unarchive(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTodo, restored.Status)
}

func TestUnarchiveRequiresLocalRecord(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "shelved", Status: model.StatusArchived})

	_, err := m.Unarchive(context.Background(), seeded.ID)

	var nf *api.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "archived task", nf.Resource)
}

func TestToggleCompleteIsAnInvolution(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "flip me"})
	require.NoError(t, m.ListActive(context.Background(), nil))

	done, err := m.ToggleComplete(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	back, err := m.ToggleComplete(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTodo, back.Status)
}

func TestToggleCompleteFromInProgress(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "halfway", Status: model.StatusInProgress})
	require.NoError(t, m.ListActive(context.Background(), nil))

	done, err := m.ToggleComplete(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
}

func TestToggleCompleteRequiresLocalRecord(t *testing.T) {
	_, m := setup(t)

	_, err := m.ToggleComplete(context.Background(), 99)

	var nf *api.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "task 99 not found", m.LastError())
}

func TestDeleteRemovesEverywhere(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "doomed"})
	require.NoError(t, m.ListActive(context.Background(), nil))

	require.NoError(t, m.Delete(context.Background(), seeded.ID))

	_, ok := m.FindActive(seeded.ID)
	assert.False(t, ok)
	_, exists := srv.Task(seeded.ID)
	assert.False(t, exists)
}

func TestSetStatus(t *testing.T) {
	srv, m := setup(t)
	seeded := srv.SeedTask(model.Task{Title: "start me"})
	require.NoError(t, m.ListActive(context.Background(), nil))

	updated, err := m.SetStatus(context.Background(), seeded.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, updated.Status)

	got, ok := m.FindActive(seeded.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusInProgress, got.Status)
}
