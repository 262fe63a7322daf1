package board

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"sprintdesk/internal/model"
)

// Backend is the task surface of the REST backend the board needs.
type Backend interface {
	ListTasks(ctx context.Context, projectID, sprintID model.ID) ([]model.Task, error)
	CreateTask(ctx context.Context, draft model.TaskDraft) (model.Task, error)
	UpdateTask(ctx context.Context, taskID model.ID, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, taskID model.ID) error
	UpdateSubtaskStatus(ctx context.Context, subtaskID model.ID, completed bool) error
	CreateSubtask(ctx context.Context, taskID model.ID, title string) (model.Subtask, error)
	DeleteSubtask(ctx context.Context, subtaskID model.ID) error
}

// Board is the in-memory mirror of one sprint's tasks.
//
// The mutex only guards state transitions; it is never held across a backend call, so
// optimistic mutations are not serialized and each rollback restores its own snapshot.
type Board struct {
	backend Backend
	logger  *slog.Logger

	mu        sync.Mutex
	projectID model.ID
	sprintID  model.ID
	tasks     []model.Task
	loaded    bool
	err       error
	pending   int
	observers []func()
}

func New(backend Backend, projectID, sprintID model.ID, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		backend:   backend,
		logger:    logger.With(slog.String("component", "board")),
		projectID: projectID,
		sprintID:  sprintID,
	}
}

// OnChange registers fn to be called after every visible state transition.
// Observers run on the goroutine that caused the change, without the board's lock held.
func (b *Board) OnChange(fn func()) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, fn)
	b.mu.Unlock()
}

func (b *Board) notify() {
	b.mu.Lock()
	obs := append([]func(){}, b.observers...)
	b.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

func (b *Board) ProjectID() model.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.projectID
}

func (b *Board) SprintID() model.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sprintID
}

// Load refreshes the board from the backend.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	projectID, sprintID := b.projectID, b.sprintID
	b.mu.Unlock()
	return b.LoadSprint(ctx, projectID, sprintID)
}

// LoadSprint replaces the full task list with the backend's list for (projectID, sprintID).
// On failure the previous tasks and binding are retained and Err reports the FetchError.
func (b *Board) LoadSprint(ctx context.Context, projectID, sprintID model.ID) error {
	tasks, err := b.backend.ListTasks(ctx, projectID, sprintID)
	if err != nil {
		ferr := FetchError{ProjectID: projectID, SprintID: sprintID, Err: err}
		b.logger.Error("load tasks failed",
			slog.String("project", projectID.String()),
			slog.String("sprint", sprintID.String()),
			slog.String("error", err.Error()))
		b.mu.Lock()
		b.err = ferr
		b.mu.Unlock()
		b.notify()
		return ferr
	}

	tasks = model.CloneTasks(tasks)
	for i := range tasks {
		if !tasks[i].Status.Valid() {
			b.logger.Warn("task has unknown status; showing it in todo",
				slog.String("task", tasks[i].ID.String()),
				slog.String("status", string(tasks[i].Status)))
			tasks[i].Status = model.ColumnTodo
		}
	}

	b.mu.Lock()
	b.projectID = projectID
	b.sprintID = sprintID
	b.tasks = tasks
	b.loaded = true
	b.err = nil
	b.mu.Unlock()
	b.notify()
	return nil
}

// Tasks returns a copy of the full ordered task list.
func (b *Board) Tasks() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := model.CloneTasks(b.tasks)
	if out == nil {
		out = []model.Task{}
	}
	return out
}

// Column returns a copy of the tasks in col, in board order.
func (b *Board) Column(col model.Column) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Task, 0)
	for _, t := range b.tasks {
		if t.Status == col {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (b *Board) Task(id model.ID) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := indexOfTask(b.tasks, id)
	if i < 0 {
		return model.Task{}, false
	}
	return b.tasks[i].Clone(), true
}

// Err returns the last load error, cleared by the next successful load.
func (b *Board) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Board) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Pending reports how many optimistic changes are awaiting confirmation.
func (b *Board) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// PrerequisiteCandidates returns the tasks that taskID may depend on (every task but itself).
func (b *Board) PrerequisiteCandidates(taskID model.ID) []model.Task {
	out := make([]model.Task, 0)
	for _, t := range b.Tasks() {
		if t.ID != taskID {
			out = append(out, t)
		}
	}
	return out
}

// ApplyStatusChange moves a task to another column optimistically and confirms it with the
// backend. Unknown tasks and same-column moves are no-ops.
func (b *Board) ApplyStatusChange(ctx context.Context, taskID model.ID, col model.Column) error {
	if !col.Valid() {
		return ValidationError{Field: "status", Reason: "unknown column " + string(col)}
	}
	return b.optimistic(ctx, OpStatus, taskID,
		func(tasks []model.Task) bool {
			i := indexOfTask(tasks, taskID)
			if i < 0 || tasks[i].Status == col {
				return false
			}
			tasks[i].Status = col
			return true
		},
		func(ctx context.Context) error {
			_, err := b.backend.UpdateTask(ctx, taskID, model.TaskPatch{Status: &col})
			return err
		},
	)
}

// ApplyReorder moves taskID to newIndex within col. It is purely local: the backend has no
// order field, so nothing is confirmed. It reports whether the order changed.
func (b *Board) ApplyReorder(taskID model.ID, newIndex int, col model.Column) bool {
	b.mu.Lock()
	next, changed := reorderWithinColumn(b.tasks, taskID, newIndex, col)
	if changed {
		b.tasks = next
	}
	b.mu.Unlock()
	if changed {
		b.notify()
	}
	return changed
}

// ToggleSubtask sets a subtask's completion optimistically and confirms it. When the task or
// subtask is not on the board nothing changes and the backend is not called.
func (b *Board) ToggleSubtask(ctx context.Context, taskID, subtaskID model.ID, completed bool) error {
	return b.optimistic(ctx, OpSubtask, taskID,
		func(tasks []model.Task) bool {
			i := indexOfTask(tasks, taskID)
			if i < 0 || subtaskID.IsZero() {
				return false
			}
			for j := range tasks[i].Subtasks {
				st := &tasks[i].Subtasks[j]
				if st.ID != subtaskID {
					continue
				}
				if st.Completed == completed {
					return false
				}
				st.Completed = completed
				return true
			}
			return false
		},
		func(ctx context.Context) error {
			return b.backend.UpdateSubtaskStatus(ctx, subtaskID, completed)
		},
	)
}

// CreateTask validates draft, creates it and reloads the board.
func (b *Board) CreateTask(ctx context.Context, draft model.TaskDraft) (model.Task, error) {
	draft = trimDraft(draft)
	if draft.SprintID.IsZero() {
		draft.SprintID = b.SprintID()
	}
	if draft.Status == "" {
		draft.Status = model.ColumnTodo
	}
	if err := validateStruct(draft); err != nil {
		return model.Task{}, err
	}

	created, err := b.backend.CreateTask(ctx, draft)
	if err != nil {
		b.logger.Error("create task failed", slog.String("error", err.Error()))
		return model.Task{}, MutationError{Op: OpCreate, Err: err}
	}
	return created, b.Load(ctx)
}

// UpdateTask validates patch, sends it and reloads the board.
func (b *Board) UpdateTask(ctx context.Context, taskID model.ID, patch model.TaskPatch) error {
	if taskID.IsZero() {
		return ValidationError{Field: "id", Reason: "must not be empty"}
	}
	patch = trimPatch(patch)
	if patch.Empty() {
		return nil
	}
	if err := validateStruct(patch); err != nil {
		return err
	}
	if patch.PrerequisiteTaskIDs != nil {
		if err := validatePrerequisites(taskID, *patch.PrerequisiteTaskIDs); err != nil {
			return err
		}
	}

	if _, err := b.backend.UpdateTask(ctx, taskID, patch); err != nil {
		b.logger.Error("update task failed", slog.String("task", taskID.String()), slog.String("error", err.Error()))
		return MutationError{Op: OpUpdate, TaskID: taskID, Err: err}
	}
	return b.Load(ctx)
}

// DeleteTask deletes a task and reloads the board. Callers confirm with the user first.
func (b *Board) DeleteTask(ctx context.Context, taskID model.ID) error {
	if taskID.IsZero() {
		return ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if err := b.backend.DeleteTask(ctx, taskID); err != nil {
		b.logger.Error("delete task failed", slog.String("task", taskID.String()), slog.String("error", err.Error()))
		return MutationError{Op: OpDelete, TaskID: taskID, Err: err}
	}
	return b.Load(ctx)
}

// AddSubtask creates a subtask under taskID and reloads to pick up its server id.
func (b *Board) AddSubtask(ctx context.Context, taskID model.ID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if _, err := b.backend.CreateSubtask(ctx, taskID, title); err != nil {
		b.logger.Error("add subtask failed", slog.String("task", taskID.String()), slog.String("error", err.Error()))
		return MutationError{Op: OpAddSubtask, TaskID: taskID, Err: err}
	}
	return b.Load(ctx)
}

// RemoveSubtask deletes a subtask and reloads.
func (b *Board) RemoveSubtask(ctx context.Context, subtaskID model.ID) error {
	if subtaskID.IsZero() {
		return ValidationError{Field: "subtaskId", Reason: "must not be empty"}
	}
	if err := b.backend.DeleteSubtask(ctx, subtaskID); err != nil {
		b.logger.Error("remove subtask failed", slog.String("subtask", subtaskID.String()), slog.String("error", err.Error()))
		return MutationError{Op: OpRemoveSubtask, Err: err}
	}
	return b.Load(ctx)
}

// Reset drops all state (logout).
func (b *Board) Reset() {
	b.mu.Lock()
	b.tasks = nil
	b.loaded = false
	b.err = nil
	b.mu.Unlock()
	b.notify()
}

func indexOfTask(tasks []model.Task, id model.ID) int {
	if id.IsZero() {
		return -1
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
