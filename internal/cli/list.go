package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskpilot/internal/model"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks, optionally filtered.

Examples:
  taskpilot list
  taskpilot list --status in_progress
  taskpilot list --priority high
  taskpilot list --archived`,
	RunE: runList,
}

var (
	listStatus   string
	listPriority string
	listCategory string
	listArchived bool
)

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status (todo, in_progress, completed)")
	listCmd.Flags().StringVarP(&listPriority, "priority", "p", "", "Filter by priority (low, medium, high)")
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Filter by category id")
	listCmd.Flags().BoolVarP(&listArchived, "archived", "a", false, "Show archived tasks")
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.requireAuth(); err != nil {
		return err
	}

	if listArchived {
		if err := app.Tasks.ListArchived(cmd.Context()); err != nil {
			return fmt.Errorf("%s", app.Tasks.LastError())
		}
		printTasks("Archived", app.Tasks.Archived())
		return nil
	}

	filters := map[string]string{}
	if listStatus != "" {
		filters["status"] = listStatus
	}
	if listPriority != "" {
		filters["priority"] = listPriority
	}
	if listCategory != "" {
		filters["category_id"] = listCategory
	}

	if err := app.Tasks.ListActive(cmd.Context(), filters); err != nil {
		return fmt.Errorf("%s", app.Tasks.LastError())
	}

	tasks := app.Tasks.Active()
	if len(tasks) == 0 {
		fmt.Println("No tasks found. Add one with: taskpilot add \"Your task\"")
		return nil
	}

	printTasks("Tasks", tasks)
	return nil
}

func printTasks(heading string, tasks []model.Task) {
	pending := 0
	for i := range tasks {
		if !tasks[i].IsDone() {
			pending++
		}
	}

	fmt.Printf("\n📁 %s (%d pending)\n", heading, pending)
	fmt.Println(strings.Repeat("─", 70))

	for i := range tasks {
		printTask(tasks[i])
	}
	fmt.Println()
}

func printTask(t model.Task) {
	icon := "[ ]"
	switch t.Status {
	case model.StatusCompleted:
		icon = "[x]"
	case model.StatusInProgress:
		icon = "[~]"
	case model.StatusArchived:
		icon = "[#]"
	}

	priority := "  "
	switch t.Priority {
	case model.PriorityHigh:
		priority = "▲ high"
	case model.PriorityMedium:
		priority = "  med"
	case model.PriorityLow:
		priority = "  low"
	}

	due := ""
	if t.DueDate != nil {
		due = t.DueDate.Format("Jan 2")
		if t.IsOverdue() {
			due = "⚠ " + due
		}
	}

	title := t.Title
	if len(title) > 40 {
		title = title[:37] + "..."
	}

	fmt.Printf("  %s  %-6d  %-40s  %-10s  %s\n", icon, t.ID, title, due, priority)
}

// parseDue accepts YYYY-MM-DD or RFC3339 due dates
func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q, use YYYY-MM-DD", s)
	}
	return &t, nil
}
