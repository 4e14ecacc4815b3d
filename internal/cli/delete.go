package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [task-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a task permanently",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var deleteYes bool

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	if app.Config.ConfirmDelete && !deleteYes {
		answer := promptLine(fmt.Sprintf("Delete task #%d permanently? [y/N] ", id))
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := app.Tasks.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	fmt.Printf("🗑️  Deleted task #%d\n", id)
	return nil
}
