package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/existflow/taskpilot/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id] [status]",
	Short: "Set a task's status",
	Long: `Set a task's status directly.

Examples:
  taskpilot status 42 in_progress
  taskpilot status 42 todo`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.requireAuth(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	status := model.Status(args[1])
	if !model.ValidStatus(status) {
		return fmt.Errorf("invalid status %q (todo, in_progress, completed, archived)", args[1])
	}

	t, err := app.Tasks.SetStatus(cmd.Context(), id, status)
	if err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	fmt.Printf("✓ #%d is now %s\n", t.ID, t.Status)
	return nil
}
