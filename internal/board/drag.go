package board

import (
	"context"
	"sync"

	"sprintdesk/internal/model"
)

// Outcome tells what a drop did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeReorder
	OutcomeMove
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReorder:
		return "reorder"
	case OutcomeMove:
		return "move"
	default:
		return "none"
	}
}

// Reconciler turns drag gestures into board operations. It holds at most one active drag.
type Reconciler struct {
	board *Board

	mu     sync.Mutex
	active model.ID
	over   string
}

func NewReconciler(b *Board) *Reconciler {
	return &Reconciler{board: b}
}

// DragStart records id as the dragged task. Unknown ids are ignored.
func (r *Reconciler) DragStart(id model.ID) bool {
	if _, ok := r.board.Task(id); !ok {
		return false
	}
	r.mu.Lock()
	r.active = id
	r.over = ""
	r.mu.Unlock()
	return true
}

// DragOver records the current hover target (a column id or a task id).
func (r *Reconciler) DragOver(target string) {
	r.mu.Lock()
	r.over = target
	r.mu.Unlock()
}

// Active returns the dragged task id and the last hover target.
func (r *Reconciler) Active() (model.ID, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.over
}

// Cancel clears the active drag without changing the board.
func (r *Reconciler) Cancel() {
	r.mu.Lock()
	r.active = ""
	r.over = ""
	r.mu.Unlock()
}

// DragEnd resolves the drop. Only the first candidate decides: it must name a column or a
// task on the board, otherwise the drop does nothing. With no candidates the last hover
// target is used.
//
// Dropping onto another column (or onto a task in it) changes status. Dropping onto a task
// of the same column reorders to that task's position. Dropping onto the task's own column
// does nothing.
func (r *Reconciler) DragEnd(ctx context.Context, candidates ...string) (Outcome, error) {
	r.mu.Lock()
	active, over := r.active, r.over
	r.active = ""
	r.over = ""
	r.mu.Unlock()

	if active.IsZero() {
		return OutcomeNone, nil
	}
	if len(candidates) == 0 && over != "" {
		candidates = []string{over}
	}

	tasks := r.board.Tasks()
	i := indexOfTask(tasks, active)
	if i < 0 {
		return OutcomeNone, nil
	}
	from := tasks[i].Status

	targetCol, targetTask, ok := resolveTarget(tasks, candidates)
	if !ok {
		return OutcomeNone, nil
	}

	if targetCol != from {
		if err := r.board.ApplyStatusChange(ctx, active, targetCol); err != nil {
			return OutcomeNone, err
		}
		return OutcomeMove, nil
	}
	if targetTask.IsZero() || targetTask == active {
		return OutcomeNone, nil
	}
	idx := indexInColumn(tasks, targetTask, from)
	if idx < 0 {
		return OutcomeNone, nil
	}
	if !r.board.ApplyReorder(active, idx, from) {
		return OutcomeNone, nil
	}
	return OutcomeReorder, nil
}

// resolveTarget maps the first candidate to a column and, for task targets, the task.
// Column ids are checked before task ids.
func resolveTarget(tasks []model.Task, candidates []string) (model.Column, model.ID, bool) {
	if len(candidates) == 0 {
		return "", "", false
	}
	c := candidates[0]
	if col := model.Column(c); col.Valid() {
		return col, "", true
	}
	id := model.ID(c)
	if j := indexOfTask(tasks, id); j >= 0 {
		return tasks[j].Status, id, true
	}
	return "", "", false
}
