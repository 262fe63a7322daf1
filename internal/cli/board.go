package cli

import (
	"context"
	"strings"

	"sprintdesk/internal/board"
	"sprintdesk/internal/model"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	"github.com/spf13/cobra"
)

// boardFlags select the sprint board a command works on. Empty flags fall back to the
// last board opened from this machine.
type boardFlags struct {
	project string
	sprint  string
}

func (f *boardFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.project, "project", envOr("SPRINTDESK_PROJECT", ""), "Project id (default: last opened)")
	cmd.PersistentFlags().StringVar(&f.sprint, "sprint", envOr("SPRINTDESK_SPRINT", ""), "Sprint id (default: last opened)")
}

func (f *boardFlags) resolve(ctx context.Context, db *store.DB) (model.ID, model.ID, error) {
	project := model.ID(strings.TrimSpace(f.project))
	sprint := model.ID(strings.TrimSpace(f.sprint))
	if project.IsZero() || sprint.IsZero() {
		st, err := db.LoadUIState(ctx)
		if err != nil {
			return "", "", err
		}
		if project.IsZero() {
			project = model.ID(st.ProjectID)
		}
		if sprint.IsZero() {
			sprint = model.ID(st.SprintID)
		}
	}
	if project.IsZero() || sprint.IsZero() {
		return "", "", noBoardError{}
	}
	return project, sprint, nil
}

// openBoard loads the selected board and remembers it as the last-opened one.
func openBoard(ctx context.Context, f *boardFlags, s *session.Session, db *store.DB) (*board.Board, error) {
	project, sprint, err := f.resolve(ctx, db)
	if err != nil {
		return nil, err
	}
	b := s.NewBoard(project, sprint)
	if err := b.Load(ctx); err != nil {
		return nil, err
	}

	st, err := db.LoadUIState(ctx)
	if err != nil {
		return b, nil
	}
	if st.ProjectID != project.String() || st.SprintID != sprint.String() {
		st.ProjectID = project.String()
		st.SprintID = sprint.String()
		st.SelectedTaskID = ""
		_ = db.SaveUIState(ctx, st)
	}
	return b, nil
}

func boardTask(b *board.Board, id model.ID) (model.Task, error) {
	t, ok := b.Task(id)
	if !ok {
		return model.Task{}, errNotFound("task", id.String())
	}
	return t, nil
}

func parseColumn(s string) (model.Column, error) {
	col, ok := model.ParseColumn(s)
	if !ok {
		return "", board.ValidationError{Field: "status", Reason: "unknown column " + strings.TrimSpace(s) + " (todo|in-progress|done)"}
	}
	return col, nil
}

type columnOut struct {
	ID    model.Column `json:"id"`
	Label string       `json:"label"`
	Tasks []model.Task `json:"tasks"`
}

func columnsOut(b *board.Board) []columnOut {
	out := make([]columnOut, 0, len(model.Columns()))
	for _, def := range model.Columns() {
		out = append(out, columnOut{ID: def.ID, Label: def.Label, Tasks: b.Column(def.ID)})
	}
	return out
}

func taskIDs(tasks []model.Task) []model.ID {
	out := make([]model.ID, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
