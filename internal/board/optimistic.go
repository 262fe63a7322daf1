package board

import (
	"context"
	"log/slog"

	"sprintdesk/internal/model"
)

// optimistic runs the snapshot/commit/revert protocol shared by status changes and subtask
// toggles.
//
// mutate edits tasks in place and reports whether it changed anything; when it did not, the
// confirm step is skipped. On confirm failure the snapshot taken before mutate is restored
// wholesale, even if other mutations landed in between.
func (b *Board) optimistic(ctx context.Context, op string, taskID model.ID, mutate func(tasks []model.Task) bool, confirm func(ctx context.Context) error) error {
	b.mu.Lock()
	snapshot := model.CloneTasks(b.tasks)
	if !mutate(b.tasks) {
		b.mu.Unlock()
		return nil
	}
	b.pending++
	b.mu.Unlock()
	b.notify()

	err := confirm(ctx)

	b.mu.Lock()
	b.pending--
	if err != nil {
		b.tasks = snapshot
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Warn("optimistic change rolled back",
			slog.String("op", op),
			slog.String("task", taskID.String()),
			slog.String("error", err.Error()))
		b.notify()
		return MutationError{Op: op, TaskID: taskID, Err: err}
	}
	// Observers re-read Pending.
	b.notify()
	return nil
}
