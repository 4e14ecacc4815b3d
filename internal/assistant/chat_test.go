package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/taskpilot/internal/api"
	"github.com/existflow/taskpilot/internal/apitest"
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

func setup(t *testing.T) (*apitest.Server, *Chat) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	srv.SeedUser("Ada", "ada@example.com", "hunter2", []string{"user"})
	tokens := &memTokens{token: srv.IssueToken("ada@example.com")}
	client := api.NewClient(srv.URL(), tokens, nil)
	return srv, NewChat(client, nil)
}

func TestSendPlainResponse(t *testing.T) {
	srv, c := setup(t)
	srv.SetChatResponse("You have 3 tasks due today.", []map[string]any{
		{"success": true, "action": "list_tasks", "message": "Listed tasks"},
	})

	require.NoError(t, c.Send(context.Background(), "what's due today?"))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "what's due today?", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "You have 3 tasks due today.", msgs[1].Content)
	require.Len(t, msgs[1].Actions, 1)
	assert.True(t, msgs[1].Actions[0].Success)
	assert.Equal(t, "list_tasks", msgs[1].Actions[0].Action)
}

func TestSendStreamedResponse(t *testing.T) {
	srv, c := setup(t)
	srv.SetStream([]string{"Sure, ", "adding ", "that task now."})

	require.NoError(t, c.Send(context.Background(), "add a task to water the plants"))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Sure, adding that task now.", msgs[1].Content)
}

func TestSendTrimsAndSkipsEmpty(t *testing.T) {
	_, c := setup(t)

	require.NoError(t, c.Send(context.Background(), "   \n\t "))
	assert.Empty(t, c.Messages())
}

func TestSendNotifiesOnEveryChunk(t *testing.T) {
	srv, c := setup(t)
	srv.SetStream([]string{"a", "b", "c"})

	notifications := 0
	c.SetNotify(func() { notifications++ })

	require.NoError(t, c.Send(context.Background(), "hi"))

	// user message + placeholder + one per chunk
	assert.GreaterOrEqual(t, notifications, 5)
}

func TestSendFailureAppendsApology(t *testing.T) {
	srv, c := setup(t)
	srv.SetRejectAll(true)
	srv.SetFailRefresh(true)

	err := c.Send(context.Background(), "hello?")
	require.Error(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Sorry, I encountered an error:"))
	assert.NotEmpty(t, c.LastError())
}

func TestClearMidStreamDropsChunks(t *testing.T) {
	c := NewChat(nil, nil)

	c.append(Message{ID: "placeholder", Role: RoleAssistant})
	c.appendChunk("placeholder", "partial ")

	c.ClearLocal()

	// Late chunks for a cleared conversation must not resurrect it
	c.appendChunk("placeholder", "answer")
	assert.Empty(t, c.Messages())
}

func TestLoadHistory(t *testing.T) {
	srv, c := setup(t)
	srv.SetChatResponse("Hi Ada!", nil)
	require.NoError(t, c.Send(context.Background(), "hello"))

	// Fresh chat instance, same server-side conversation
	c2 := NewChat(chatClient(t, srv), nil)
	require.NoError(t, c2.LoadHistory(context.Background()))

	msgs := c2.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi Ada!", msgs[1].Content)
	assert.NotEmpty(t, msgs[0].ID)
}

func TestLoadHistoryFailureIsBestEffort(t *testing.T) {
	srv, c := setup(t)
	srv.SetChatResponse("Hi!", nil)
	require.NoError(t, c.Send(context.Background(), "hello"))

	srv.SetRejectAll(true)
	srv.SetFailRefresh(true)

	// A failed fetch is logged, not propagated, and local state survives
	require.NoError(t, c.LoadHistory(context.Background()))
	assert.Len(t, c.Messages(), 2)
}

func TestClearWipesServerAndLocal(t *testing.T) {
	srv, c := setup(t)
	srv.SetChatResponse("Hi!", nil)
	require.NoError(t, c.Send(context.Background(), "hello"))

	require.NoError(t, c.Clear(context.Background()))
	assert.Empty(t, c.Messages())

	require.NoError(t, c.LoadHistory(context.Background()))
	assert.Empty(t, c.Messages(), "server-side history should be gone too")
}

func chatClient(t *testing.T, srv *apitest.Server) *api.Client {
	t.Helper()
	tokens := &memTokens{token: srv.IssueToken("ada@example.com")}
	return api.NewClient(srv.URL(), tokens, nil)
}
