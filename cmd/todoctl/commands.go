package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tomlord1122/concierge-backend/internal/service"
)

type rootOptions struct {
	dbPath  string
	verbose bool
	app     *app
}

// close releases the database opened by PersistentPreRunE, if any.
func (o *rootOptions) close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.close()
	o.app = nil
	return err
}

func defaultDBPath() string {
	if p := os.Getenv("SQLITE_PATH"); p != "" {
		return p
	}
	return "./data/concierge.db"
}

// execute runs root and then closes the database. cobra skips
// PersistentPostRun when RunE fails, so the close cannot live there.
func execute(ctx context.Context, root *cobra.Command, opts *rootOptions) error {
	err := root.ExecuteContext(ctx)
	if cerr := opts.close(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", opts.dbPath, cerr)
	}
	return err
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "todoctl",
		Short:         "Manage the concierge todo board",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if opts.verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = l
			}
			a, err := openApp(cmd.Context(), opts.dbPath, logger)
			if err != nil {
				return fmt.Errorf("open %s: %w", opts.dbPath, err)
			}
			opts.app = a
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", defaultDBPath(), "SQLite database file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log storage activity")

	root.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newToggleCmd(opts),
		newDeleteCmd(opts),
		newClearCmd(opts),
		newStatsCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return root, opts
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var filter, sortKey string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			todos, err := opts.app.todos.ListTodos(cmd.Context(), service.ListTodosRequest{Filter: filter, Sort: sortKey})
			if err != nil {
				return err
			}
			return printTodos(cmd.OutOrStdout(), todos)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, active or completed")
	cmd.Flags().StringVar(&sortKey, "sort", "dueDate", "priority, category or dueDate")
	return cmd
}

func printTodos(w io.Writer, todos []service.TodoResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tPRIORITY\tCATEGORY\tDUE\tTEXT")
	for _, t := range todos {
		done := " "
		if t.Completed {
			done = "x"
		}
		due := t.DueDate
		if due == "" {
			due = "-"
		}
		fmt.Fprintf(tw, "%d\t[%s]\t%s\t%s\t%s\t%s\n", t.ID, done, t.Priority, t.Category, due, t.Text)
	}
	return tw.Flush()
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var req service.CreateTodoRequest
	cmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Add a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Text = args[0]
			todo, err := opts.app.todos.CreateTodo(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d: %s\n", todo.ID, todo.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Category, "category", "", "personal, business, travel, errands, events or other")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "low, medium, high or urgent")
	cmd.Flags().StringVar(&req.DueDate, "due", "", "due date as YYYY-MM-DD")
	return cmd
}

func parseIDArg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid todo id %q", s)
	}
	return id, nil
}

func newToggleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a todo between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			todo, err := opts.app.todos.ToggleTodo(cmd.Context(), id)
			if err != nil {
				return err
			}
			state := "active"
			if todo.Completed {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d is now %s\n", todo.ID, state)
			return nil
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			if err := opts.app.todos.DeleteTodo(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
			return nil
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every completed todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.app.todos.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed todos\n", n)
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show active and completed counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := opts.app.todos.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stats.Label)
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var formatName, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export todos as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := service.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if output == "" {
				return opts.app.todos.ExportTodos(cmd.Context(), format, cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := opts.app.todos.ExportTodos(cmd.Context(), format, f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "json", "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Append todos from a .json or .csv export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := service.FormatFromFilename(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := opts.app.todos.ImportTodos(cmd.Context(), format, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully imported %d todos\n", n)
			return nil
		},
	}
}
