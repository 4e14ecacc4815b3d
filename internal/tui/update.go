package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// refreshMsg is sent when the conversation changed (chunk, history, clear)
type refreshMsg struct{}

// sendDoneMsg is sent when a Send call finished
type sendDoneMsg struct{ err error }

// clearDoneMsg is sent when a Clear call finished
type clearDoneMsg struct{ err error }

// Init starts history loading and the refresh listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadHistoryCmd(), m.waitForRefresh())
}

func (m Model) loadHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		_ = m.chat.LoadHistory(context.Background())
		return refreshMsg{}
	}
}

func (m Model) waitForRefresh() tea.Cmd {
	return func() tea.Msg {
		<-m.refreshChan
		return refreshMsg{}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{err: m.chat.Send(context.Background(), text)}
	}
}

func (m Model) clearCmd() tea.Cmd {
	return func() tea.Msg {
		return clearDoneMsg{err: m.chat.Clear(context.Background())}
	}
}

// Update handles TUI messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 1
		footerHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+l":
			return m, m.clearCmd()
		case "enter":
			text := m.input.Value()
			if text == "" || m.sending {
				return m, nil
			}
			m.input.Reset()
			m.sending = true
			m.errMsg = ""
			return m, m.sendCmd(text)
		}

	case refreshMsg:
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, m.waitForRefresh()

	case sendDoneMsg:
		m.sending = false
		if msg.err != nil {
			m.errMsg = m.chat.LastError()
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case clearDoneMsg:
		if msg.err != nil {
			m.errMsg = m.chat.LastError()
		} else {
			m.errMsg = ""
		}
		m.viewport.SetContent(m.renderMessages())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}
