package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [task-id]",
	Short: "Archive a task",
	Long: `Archive a task. Archived tasks keep their prior status and can
be restored with 'taskpilot unarchive'.`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive [task-id]",
	Short: "Restore an archived task",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnarchive,
}

func runArchive(cmd *cobra.Command, args []string) error {
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

	t, err := app.Tasks.Archive(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	fmt.Printf("📦 Archived: \"%s\"\n", t.Title)
	return nil
}

func runUnarchive(cmd *cobra.Command, args []string) error {
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

	// Restoring needs the task tracked in the archived collection
	if err := app.Tasks.ListArchived(cmd.Context()); err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	t, err := app.Tasks.Unarchive(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	fmt.Printf("✓ Restored \"%s\" as %s\n", t.Title, t.Status)
	return nil
}
