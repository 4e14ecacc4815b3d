package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/taskpilot/internal/assistant"
)

// View renders the chat screen
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := HeaderStyle.Render("TaskPilot Assistant")

	status := StatusStyle.Render("enter: send · ctrl+l: clear · esc: quit")
	if m.sending {
		status = StatusStyle.Render("Thinking...")
	}
	if m.errMsg != "" {
		status = ErrorStyle.Render(m.errMsg)
	}

	input := InputStyle.Width(m.width).Render("> " + m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		input,
		status,
	)
}

func (m Model) renderMessages() string {
	messages := m.chat.Messages()
	if len(messages) == 0 {
		return StatusStyle.Render("No messages yet. Say hello!")
	}

	var b strings.Builder
	for _, msg := range messages {
		label := AssistantLabelStyle.Render("assistant")
		if msg.Role == assistant.RoleUser {
			label = UserLabelStyle.Render("you")
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", label, msg.Timestamp.Format("15:04")))
		b.WriteString(msg.Content)
		b.WriteString("\n")

		for _, action := range msg.Actions {
			icon := "✓"
			if !action.Success {
				icon = "✗"
			}
			b.WriteString(ActionStyle.Render(fmt.Sprintf("  %s %s", icon, action.Message)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
