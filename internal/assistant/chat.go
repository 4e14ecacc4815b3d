package assistant

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/existflow/taskpilot/internal/api"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ActionResult describes a task action the assistant performed
type ActionResult struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	TaskID  *int64 `json:"task_id,omitempty"`
	Message string `json:"message"`
}

// Message is one entry in the conversation
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Actions   []ActionResult
}

// Chat manages the conversation with the AI assistant. Streamed chunks
// are appended to a placeholder message located by stable id, so clearing
// the conversation mid-stream cannot corrupt or resurrect it.
type Chat struct {
	api *api.Client
	log *zap.Logger

	mu       sync.RWMutex
	messages []Message
	lastErr  string
	notify   func()
}

// NewChat creates an assistant conversation
func NewChat(client *api.Client, log *zap.Logger) *Chat {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chat{api: client, log: log}
}

// SetNotify registers a callback fired after every message-list mutation,
// for UI refresh.
func (c *Chat) SetNotify(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Messages returns a copy of the conversation
func (c *Chat) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Send submits a message and appends the assistant's reply, either as a
// single JSON response or incrementally from an event stream.
func (c *Chat) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.append(Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})

	payload := map[string]string{"message": text}
	resp, err := c.api.Stream(ctx, http.MethodPost, "/ai/chat", payload)
	if err != nil {
		msg := c.fail(err, "Failed to get AI response")
		c.append(Message{
			ID:        uuid.New().String(),
			Role:      RoleAssistant,
			Content:   fmt.Sprintf("Sorry, I encountered an error: %s", msg),
			Timestamp: time.Now(),
		})
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return c.readStream(resp.Body)
	}

	var out struct {
		Response         string         `json:"response"`
		ActionsPerformed []ActionResult `json:"actions_performed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		ferr := &api.FetchError{Err: fmt.Errorf("failed to decode response: %w", err)}
		c.fail(ferr, "Failed to get AI response")
		return ferr
	}

	c.append(Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   out.Response,
		Timestamp: time.Now(),
		Actions:   out.ActionsPerformed,
	})
	c.clearErr()
	return nil
}

// readStream consumes `data:` lines until the [DONE] sentinel, appending
// each chunk to the placeholder by id.
func (c *Chat) readStream(r io.Reader) error {
	placeholderID := uuid.New().String()
	c.append(Message{
		ID:        placeholderID,
		Role:      RoleAssistant,
		Timestamp: time.Now(),
	})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var event struct {
			Chunk string `json:"chunk"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			c.log.Warn("skipping malformed stream event", zap.String("payload", payload))
			continue
		}

		if event.Error != "" {
			c.appendChunk(placeholderID, fmt.Sprintf("\n[error: %s]", event.Error))
			continue
		}
		if event.Chunk != "" {
			c.appendChunk(placeholderID, event.Chunk)
		}
	}

	if err := scanner.Err(); err != nil {
		ferr := &api.FetchError{Err: fmt.Errorf("stream interrupted: %w", err)}
		c.fail(ferr, "Failed to get AI response")
		return ferr
	}

	c.clearErr()
	return nil
}

// LoadHistory replaces the conversation with the server-side history.
// Best-effort: a failed fetch is logged and does not block the caller.
func (c *Chat) LoadHistory(ctx context.Context) error {
	var resp struct {
		Success  bool `json:"success"`
		Messages []struct {
			ID           int64  `json:"id"`
			IsAIResponse bool   `json:"is_ai_response"`
			Content      string `json:"content"`
			CreatedAt    string `json:"created_at"`
		} `json:"messages"`
	}
	if err := c.api.Get(ctx, "/ai/messages", nil, &resp); err != nil {
		c.log.Warn("failed to fetch chat history", zap.Error(err))
		return nil
	}

	history := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		role := RoleUser
		if m.IsAIResponse {
			role = RoleAssistant
		}
		ts, err := time.Parse(time.RFC3339, m.CreatedAt)
		if err != nil {
			ts = time.Now()
		}
		history = append(history, Message{
			ID:        strconv.FormatInt(m.ID, 10),
			Role:      role,
			Content:   m.Content,
			Timestamp: ts,
		})
	}

	c.mu.Lock()
	c.messages = history
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Clear deletes the server-side conversation and resets the local one
func (c *Chat) Clear(ctx context.Context) error {
	if err := c.api.Delete(ctx, "/ai/conversations"); err != nil {
		c.fail(err, "Failed to clear conversation")
		return err
	}
	c.ClearLocal()
	c.clearErr()
	return nil
}

// ClearLocal drops the local message list without touching the server
func (c *Chat) ClearLocal() {
	c.mu.Lock()
	c.messages = nil
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// LastError returns the message of the most recent failed operation
func (c *Chat) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Chat) append(msg Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// appendChunk adds streamed text to the message with the given id. A
// message that no longer exists (conversation cleared mid-stream) is
// silently skipped.
func (c *Chat) appendChunk(id, chunk string) {
	c.mu.Lock()
	var fn func()
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Content += chunk
			fn = c.notify
			break
		}
	}
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Chat) fail(err error, fallback string) string {
	msg := api.Message(err, fallback)
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
	c.log.Error(fallback, zap.Error(err))
	return msg
}

func (c *Chat) clearErr() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
}
