package cli

import (
	"context"
	"strconv"
	"strings"

	"sprintdesk/internal/board"
	"sprintdesk/internal/model"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	bf := &boardFlags{}
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Sprint board tasks",
	}
	bf.register(cmd)

	cmd.AddCommand(newTasksBoardCmd(app, bf))
	cmd.AddCommand(newTasksListCmd(app, bf))
	cmd.AddCommand(newTasksShowCmd(app, bf))
	cmd.AddCommand(newTasksMoveCmd(app, bf))
	cmd.AddCommand(newTasksDropCmd(app, bf))
	cmd.AddCommand(newTasksReorderCmd(app, bf))
	cmd.AddCommand(newTasksCreateCmd(app, bf))
	cmd.AddCommand(newTasksUpdateCmd(app, bf))
	cmd.AddCommand(newTasksDeleteCmd(app, bf))
	cmd.AddCommand(newTasksCyclesCmd(app, bf))
	return cmd
}

func newTasksBoardCmd(app *App, bf *boardFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the board grouped by column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{
					"projectId": b.ProjectID(),
					"sprintId":  b.SprintID(),
					"columns":   columnsOut(b),
				}})
			})
		},
	}
}

func newTasksListCmd(app *App, bf *boardFlags) *cobra.Command {
	var column string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the sprint's tasks in board order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var col model.Column
			if strings.TrimSpace(column) != "" {
				c, err := parseColumn(column)
				if err != nil {
					return writeErr(cmd, err)
				}
				col = c
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				out := b.Tasks()
				if col != "" {
					out = b.Column(col)
				}
				return writeOut(cmd, app, map[string]any{"data": out})
			})
		},
	}
	cmd.Flags().StringVar(&column, "column", "", "Only tasks in this column (todo|in-progress|done)")
	return cmd
}

func newTasksShowCmd(app *App, bf *boardFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task and the prerequisites still blocking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				t, err := boardTask(b, id)
				if err != nil {
					return err
				}
				done, total := t.SubtaskProgress()
				return writeOut(cmd, app, map[string]any{"data": map[string]any{
					"task":      t,
					"assignee":  t.AssigneeName(),
					"subtasks":  map[string]int{"done": done, "total": total},
					"blockedBy": taskIDs(board.Blocked(t, b.Tasks())),
				}})
			})
		},
	}
}

func newTasksMoveCmd(app *App, bf *boardFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <column>",
		Short: "Change a task's column (todo|in-progress|done)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			col, err := parseColumn(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				if _, err := boardTask(b, id); err != nil {
					return err
				}
				if err := b.ApplyStatusChange(ctx, id, col); err != nil {
					return err
				}
				t, _ := b.Task(id)
				return writeOut(cmd, app, map[string]any{"data": t})
			})
		},
	}
}

func newTasksDropCmd(app *App, bf *boardFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <task-id> <target>...",
		Short: "Drop a task onto a column or another task, as on the board",
		Long: strings.TrimSpace(`
Resolve a drop the way the board does: only the first target counts, and it must name a
column or a task on the board. Dropping onto another column, or onto a task in it, changes status.
Dropping onto a task of the same column reorders locally. Anything else does nothing.
`),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				r := board.NewReconciler(b)
				if !r.DragStart(id) {
					return errNotFound("task", id.String())
				}
				outcome, err := r.DragEnd(ctx, args[1:]...)
				if err != nil {
					return err
				}
				t, _ := b.Task(id)
				return writeOut(cmd, app, map[string]any{"data": map[string]any{
					"outcome": outcome.String(),
					"task":    t,
					"column":  taskIDs(b.Column(t.Status)),
				}})
			})
		},
	}
}

func newTasksReorderCmd(app *App, bf *boardFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <task-id> <index>",
		Short: "Preview a task's new position within its column",
		Long: strings.TrimSpace(`
Move a task to a zero-based position inside its column and print the resulting order.
The backend stores no order, so nothing is saved.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			idx, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return writeErr(cmd, board.ValidationError{Field: "index", Reason: "must be a number"})
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				t, err := boardTask(b, id)
				if err != nil {
					return err
				}
				changed := b.ApplyReorder(id, idx, t.Status)
				return writeOut(cmd, app, map[string]any{"data": map[string]any{
					"changed": changed,
					"status":  t.Status,
					"column":  taskIDs(b.Column(t.Status)),
				}})
			})
		},
	}
}

func toIDs(in []string) []model.ID {
	out := make([]model.ID, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, model.ID(part))
			}
		}
	}
	return out
}

func newTasksCreateCmd(app *App, bf *boardFlags) *cobra.Command {
	var title, description, status, assignee string
	var prereqs, subtasks []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task in the current sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := model.TaskDraft{
				Title:               title,
				Description:         description,
				AssignedUserID:      model.ID(strings.TrimSpace(assignee)),
				PrerequisiteTaskIDs: toIDs(prereqs),
			}
			if strings.TrimSpace(status) != "" {
				col, err := parseColumn(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				draft.Status = col
			}
			for _, st := range subtasks {
				draft.Subtasks = append(draft.Subtasks, model.Subtask{Title: st})
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				created, err := b.CreateTask(ctx, draft)
				if err != nil {
					return err
				}
				if t, ok := b.Task(created.ID); ok {
					created = t
				}
				return writeOut(cmd, app, map[string]any{"data": created})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "Task description (markdown)")
	cmd.Flags().StringVar(&status, "status", "", "Initial column (default todo)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assigned user id")
	cmd.Flags().StringSliceVar(&prereqs, "prereq", nil, "Prerequisite task id (repeatable or comma-separated)")
	cmd.Flags().StringArrayVar(&subtasks, "subtask", nil, "Subtask title (repeatable)")
	return cmd
}

func newTasksUpdateCmd(app *App, bf *boardFlags) *cobra.Command {
	var title, description, status, assignee string
	var prereqs []string
	var clearPrereqs bool
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task fields (only flags given are sent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			var patch model.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("status") {
				col, err := parseColumn(status)
				if err != nil {
					return writeErr(cmd, err)
				}
				patch.Status = &col
			}
			if cmd.Flags().Changed("assignee") {
				a := model.ID(strings.TrimSpace(assignee))
				patch.AssignedUserID = &a
			}
			if clearPrereqs || cmd.Flags().Changed("prereq") {
				ids := toIDs(prereqs)
				patch.PrerequisiteTaskIDs = &ids
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				if _, err := boardTask(b, id); err != nil {
					return err
				}
				if err := b.UpdateTask(ctx, id, patch); err != nil {
					return err
				}
				t, _ := b.Task(id)
				return writeOut(cmd, app, map[string]any{"data": t})
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description (markdown)")
	cmd.Flags().StringVar(&status, "status", "", "New column")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assigned user id (empty to unassign)")
	cmd.Flags().StringSliceVar(&prereqs, "prereq", nil, "Replace prerequisites (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&clearPrereqs, "clear-prereqs", false, "Remove all prerequisites")
	return cmd
}

func newTasksDeleteCmd(app *App, bf *boardFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task (requires --yes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, errConfirmRequired("delete task", id.String()))
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				if err := b.DeleteTask(ctx, id); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": id}})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

func newTasksCyclesCmd(app *App, bf *boardFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Report prerequisite cycles on the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				cycles := board.Cycles(b.Tasks())
				if cycles == nil {
					cycles = [][]model.ID{}
				}
				return writeOut(cmd, app, map[string]any{"data": cycles})
			})
		},
	}
}
