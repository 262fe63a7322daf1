package cli

import (
	"context"
	"errors"
	"strings"

	"sprintdesk/internal/model"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	"github.com/spf13/cobra"
)

func newSubtasksCmd(app *App) *cobra.Command {
	bf := &boardFlags{}
	cmd := &cobra.Command{
		Use:   "subtasks",
		Short: "Task checklists",
	}
	bf.register(cmd)

	cmd.AddCommand(newSubtasksToggleCmd(app, bf))
	cmd.AddCommand(newSubtasksAddCmd(app, bf))
	cmd.AddCommand(newSubtasksDeleteCmd(app, bf))
	return cmd
}

func findSubtask(t model.Task, id model.ID) (model.Subtask, bool) {
	for _, st := range t.Subtasks {
		if st.ID == id {
			return st, true
		}
	}
	return model.Subtask{}, false
}

func newSubtasksToggleCmd(app *App, bf *boardFlags) *cobra.Command {
	var done, todo bool
	cmd := &cobra.Command{
		Use:   "toggle <task-id> <subtask-id>",
		Short: "Flip a subtask (or force it with --done / --todo)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if done && todo {
				return writeErr(cmd, errors.New("--done and --todo are mutually exclusive"))
			}
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			subtaskID, err := parseID("subtask", args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				t, err := boardTask(b, taskID)
				if err != nil {
					return err
				}
				st, ok := findSubtask(t, subtaskID)
				if !ok {
					return errNotFound("subtask", subtaskID.String())
				}
				completed := !st.Completed
				switch {
				case done:
					completed = true
				case todo:
					completed = false
				}
				if err := b.ToggleSubtask(ctx, taskID, subtaskID, completed); err != nil {
					return err
				}
				t, _ = b.Task(taskID)
				return writeOut(cmd, app, map[string]any{"data": t})
			})
		},
	}
	cmd.Flags().BoolVar(&done, "done", false, "Mark the subtask done")
	cmd.Flags().BoolVar(&todo, "todo", false, "Mark the subtask not done")
	return cmd
}

func newSubtasksAddCmd(app *App, bf *boardFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <task-id> <title>...",
		Short: "Add a subtask to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			title := strings.Join(args[1:], " ")
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				if _, err := boardTask(b, taskID); err != nil {
					return err
				}
				if err := b.AddSubtask(ctx, taskID, title); err != nil {
					return err
				}
				t, _ := b.Task(taskID)
				return writeOut(cmd, app, map[string]any{"data": t})
			})
		},
	}
}

func newSubtasksDeleteCmd(app *App, bf *boardFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <subtask-id>",
		Short: "Delete a subtask (requires --yes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("subtask", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if !yes {
				return writeErr(cmd, errConfirmRequired("delete subtask", id.String()))
			}
			return withSession(cmd, app, func(ctx context.Context, s *session.Session, db *store.DB) error {
				b, err := openBoard(ctx, bf, s, db)
				if err != nil {
					return err
				}
				if err := b.RemoveSubtask(ctx, id); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": id}})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
