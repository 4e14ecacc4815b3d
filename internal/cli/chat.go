package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/existflow/taskpilot/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the AI assistant chat",
	Long: `Open an interactive chat with the AI assistant. The assistant can
answer questions about your tasks and perform actions on your behalf.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.requireAuth(); err != nil {
		return err
	}

	program := tea.NewProgram(tui.NewModel(app.Chat), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
