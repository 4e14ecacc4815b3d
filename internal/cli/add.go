package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskpilot/internal/model"
	"github.com/existflow/taskpilot/internal/tasks"
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a new task",
	Long: `Add a new task.

Examples:
  taskpilot add "Buy groceries"
  taskpilot add "Quarterly report" -p high -d 2026-09-30
  taskpilot add "Refactor gateway" --category 3 --notes "see review comments"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addPriority string
	addDue      string
	addCategory string
	addDesc     string
	addNotes    string
)

func init() {
	addCmd.Flags().StringVarP(&addPriority, "priority", "p", "", "Priority (low, medium, high)")
	addCmd.Flags().StringVarP(&addDue, "due", "d", "", "Due date (YYYY-MM-DD)")
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "Category id")
	addCmd.Flags().StringVar(&addDesc, "desc", "", "Description")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Notes")
}

func runAdd(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.requireAuth(); err != nil {
		return err
	}

	input := tasks.CreateInput{
		Title:       strings.Join(args, " "),
		Description: addDesc,
		Notes:       addNotes,
		Priority:    model.Priority(addPriority),
	}

	if addCategory != "" {
		id, err := strconv.ParseInt(addCategory, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid category id %q", addCategory)
		}
		input.CategoryID = &id
	}

	due, err := parseDue(addDue)
	if err != nil {
		return err
	}
	if due != nil {
		input.DueDate = due.Format(time.RFC3339)
	}

	t, err := app.Tasks.Create(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	fmt.Printf("✓ Added #%d: \"%s\"\n", t.ID, t.Title)
	return nil
}
