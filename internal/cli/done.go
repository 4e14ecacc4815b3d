package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var doneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Toggle task completion",
	Long: `Toggle a task between completed and todo.

Examples:
  taskpilot done 42`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

func runDone(cmd *cobra.Command, args []string) error {
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

	// Toggling needs the task tracked in the active collection
	if err := app.Tasks.ListActive(cmd.Context(), nil); err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	t, err := app.Tasks.ToggleComplete(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	if t.IsDone() {
		fmt.Printf("✓ Completed: \"%s\"\n", t.Title)
	} else {
		fmt.Printf("○ Reopened: \"%s\"\n", t.Title)
	}
	return nil
}
