package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/existflow/taskpilot/internal/categories"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"cat"},
	Short:   "Manage task categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE:  runCategoryList,
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoryAdd,
}

var categoryEditCmd = &cobra.Command{
	Use:   "edit [category-id]",
	Short: "Edit a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoryEdit,
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete [category-id]",
	Short: "Delete a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoryDelete,
}

var (
	categoryDesc  string
	categoryColor string
	categoryName  string
)

func init() {
	categoryAddCmd.Flags().StringVar(&categoryDesc, "desc", "", "Description")
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", "", "Display color (hex)")
	categoryEditCmd.Flags().StringVar(&categoryName, "name", "", "New name")
	categoryEditCmd.Flags().StringVar(&categoryDesc, "desc", "", "New description")
	categoryEditCmd.Flags().StringVar(&categoryColor, "color", "", "New display color (hex)")

	categoryCmd.AddCommand(categoryListCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryEditCmd)
	categoryCmd.AddCommand(categoryDeleteCmd)
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.requireAuth(); err != nil {
		return err
	}

	if err := app.Categories.List(cmd.Context()); err != nil {
		return fmt.Errorf("%s", app.Categories.LastError())
	}

	cats := app.Categories.All()
	if len(cats) == 0 {
		fmt.Println("No categories. Add one with: taskpilot category add \"Work\"")
		return nil
	}

	fmt.Printf("\n🏷️  Categories\n")
	for i := range cats {
		c := cats[i]
		color := ""
		if c.Color != "" {
			color = "  " + c.Color
		}
		fmt.Printf("  %-6d  %-24s  %s%s\n", c.ID, c.Name, c.Description, color)
	}
	fmt.Println()
	return nil
}

func runCategoryAdd(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.requireAuth(); err != nil {
		return err
	}

	c, err := app.Categories.Create(cmd.Context(), categories.Input{
		Name:        args[0],
		Description: categoryDesc,
		Color:       categoryColor,
	})
	if err != nil {
		return fmt.Errorf("%s", app.Categories.LastError())
	}

	fmt.Printf("✓ Added category #%d: %s\n", c.ID, c.Name)
	return nil
}

func runCategoryEdit(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid category id %q", args[0])
	}

	if err := app.Categories.List(cmd.Context()); err != nil {
		return fmt.Errorf("%s", app.Categories.LastError())
	}
	current, ok := app.Categories.Find(id)
	if !ok {
		return fmt.Errorf("category #%d not found", id)
	}

	input := categories.Input{
		Name:        current.Name,
		Description: current.Description,
		Color:       current.Color,
	}
	if cmd.Flags().Changed("name") {
		input.Name = categoryName
	}
	if cmd.Flags().Changed("desc") {
		input.Description = categoryDesc
	}
	if cmd.Flags().Changed("color") {
		input.Color = categoryColor
	}

	c, err := app.Categories.Update(cmd.Context(), id, input)
	if err != nil {
		return fmt.Errorf("%s", app.Categories.LastError())
	}

	fmt.Printf("✓ Updated category #%d: %s\n", c.ID, c.Name)
	return nil
}

func runCategoryDelete(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("invalid category id %q", args[0])
	}

	if err := app.Categories.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("%s", app.Categories.LastError())
	}

	fmt.Printf("🗑️  Deleted category #%d\n", id)
	return nil
}
