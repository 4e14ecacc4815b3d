package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/existflow/taskpilot/internal/assistant"
)

// Model is the chat TUI model
type Model struct {
	chat *assistant.Chat

	viewport viewport.Model
	input    textinput.Model

	width   int
	height  int
	ready   bool
	sending bool
	errMsg  string

	// Signals a message-list mutation (streamed chunk, history load)
	refreshChan chan struct{}
}

// NewModel creates the chat TUI model
func NewModel(chat *assistant.Chat) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask the assistant..."
	ti.CharLimit = 512
	ti.Focus()

	refreshChan := make(chan struct{}, 1) // Buffered to avoid blocking
	chat.SetNotify(func() {
		select {
		case refreshChan <- struct{}{}:
		default:
		}
	})

	return Model{
		chat:        chat,
		input:       ti,
		refreshChan: refreshChan,
	}
}
