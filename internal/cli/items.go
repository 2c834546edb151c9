package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"sprintgate/internal/workitem"
)

// errNoAdapter is returned by item commands when work tracking is disabled.
var errNoAdapter = errors.New("work tracking is disabled (work_tracking.platform is none)")

func newItemsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Work with the sprint's work items",
	}
	cmd.AddCommand(newItemsListCommand(app), newItemsAddCommand(app))
	return cmd
}

func newItemsListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <sprint>",
		Short: "List the work items of a sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Adapter == nil {
				return errNoAdapter
			}
			items, err := app.Adapter.Query(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				app.Printer.Text("No work items for %s", args[0])
				return nil
			}

			rows := make([][]string, len(items))
			for i, item := range items {
				rows[i] = []string{item.ID, item.Type, item.State, item.Title, item.ParentID}
			}
			app.Printer.Table([]string{"ID", "TYPE", "STATE", "TITLE", "PARENT"}, rows)
			return nil
		},
	}
}

func newItemsAddCommand(app *App) *cobra.Command {
	var item workitem.WorkItem

	cmd := &cobra.Command{
		Use:   "add <sprint> <title>",
		Short: "Add a work item to a sprint",
		Long: `Add a work item to a sprint.

Example:
  sprintgate items add "Sprint 7" "Checkout redesign" --type Epic`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Adapter == nil {
				return errNoAdapter
			}
			item.Iteration = args[0]
			item.Title = args[1]

			created, err := app.Adapter.Create(cmd.Context(), item)
			if err != nil {
				return err
			}
			app.Printer.Text("Created %s #%s: %s", created.Type, created.ID, created.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&item.Type, "type", "Task", "work item type")
	cmd.Flags().StringVar(&item.State, "state", "To Do", "initial state")
	cmd.Flags().StringVar(&item.ParentID, "parent", "", "parent work item id")
	return cmd
}
