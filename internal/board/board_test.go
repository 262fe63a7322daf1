package board

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"sprintdesk/internal/model"
)

func TestLoad_NormalizesUnknownStatus(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", "blocked"), task("2", model.ColumnDone))
	b := loadedBoard(t, f)

	got, ok := b.Task("1")
	if !ok {
		t.Fatalf("expected task 1 on board")
	}
	if got.Status != model.ColumnTodo {
		t.Fatalf("expected unknown status to map to todo; got %q", got.Status)
	}
	if !b.Loaded() || b.Err() != nil {
		t.Fatalf("expected loaded board without error; loaded=%v err=%v", b.Loaded(), b.Err())
	}
}

func TestLoadSprint_FailureKeepsPreviousState(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo), task("2", model.ColumnDone))
	b := loadedBoard(t, f)

	f.failOn("list", errors.New("boom"))
	err := b.LoadSprint(context.Background(), "1", "10")

	var ferr FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError; got %T %v", err, err)
	}
	if ferr.SprintID != "10" {
		t.Fatalf("expected failed sprint id in error; got %q", ferr.SprintID)
	}
	if got := ids(b.Tasks()); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Fatalf("expected previous tasks kept; got %v", got)
	}
	if b.SprintID() != "9" {
		t.Fatalf("expected binding kept on failure; got sprint %q", b.SprintID())
	}
	if b.Err() == nil {
		t.Fatalf("expected error flag set")
	}

	f.failOn("list", nil)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if b.Err() != nil {
		t.Fatalf("expected error cleared by successful load; got %v", b.Err())
	}
}

func TestApplyStatusChange_ConfirmsWithBackend(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo))
	b := loadedBoard(t, f)

	if err := b.ApplyStatusChange(context.Background(), "1", model.ColumnInProgress); err != nil {
		t.Fatalf("status change: %v", err)
	}
	calls := f.Calls("update")
	if len(calls) != 1 || calls[0].Patch.Status == nil || *calls[0].Patch.Status != model.ColumnInProgress {
		t.Fatalf("expected one status update to in-progress; got %+v", calls)
	}
	if calls[0].Patch.Title != nil || calls[0].Patch.Subtasks != nil {
		t.Fatalf("expected status-only patch; got %+v", calls[0].Patch)
	}
	got, _ := b.Task("1")
	if got.Status != model.ColumnInProgress {
		t.Fatalf("expected in-progress; got %q", got.Status)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected no pending changes; got %d", b.Pending())
	}
}

func TestApplyStatusChange_NoOps(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo))
	b := loadedBoard(t, f)

	if err := b.ApplyStatusChange(context.Background(), "1", model.ColumnTodo); err != nil {
		t.Fatalf("same column: %v", err)
	}
	if err := b.ApplyStatusChange(context.Background(), "404", model.ColumnDone); err != nil {
		t.Fatalf("unknown task: %v", err)
	}
	if n := len(f.Calls("update")); n != 0 {
		t.Fatalf("expected no backend calls; got %d", n)
	}

	var verr ValidationError
	if err := b.ApplyStatusChange(context.Background(), "1", "archived"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown column; got %v", err)
	}
}

func TestApplyStatusChange_RollsBackWithServerMessage(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo), task("2", model.ColumnTodo))
	b := loadedBoard(t, f)
	before := b.Tasks()

	f.failOn("update", serverError{msg: "Sprint clôturé"})
	err := b.ApplyStatusChange(context.Background(), "2", model.ColumnDone)

	var merr MutationError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MutationError; got %T %v", err, err)
	}
	if merr.Op != OpStatus || merr.TaskID != "2" {
		t.Fatalf("unexpected error fields: %+v", merr)
	}
	if got := UserMessage(err, "fallback"); got != "Sprint clôturé" {
		t.Fatalf("expected server message; got %q", got)
	}
	if !reflect.DeepEqual(b.Tasks(), before) {
		t.Fatalf("expected tasks restored; got %+v", b.Tasks())
	}
}

func TestApplyStatusChange_FallbackMessage(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo))
	b := loadedBoard(t, f)

	f.failOn("update", errors.New("dial tcp: refused"))
	err := b.ApplyStatusChange(context.Background(), "1", model.ColumnDone)
	if err == nil || !strings.Contains(err.Error(), "Erreur lors de la mise à jour du statut.") {
		t.Fatalf("expected fallback message; got %v", err)
	}
}

func TestApplyStatusChange_OptimisticWhilePending(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo), task("2", model.ColumnTodo))
	b := loadedBoard(t, f)
	f.entered = make(chan struct{})
	f.release = make(chan error)

	done := make(chan error, 1)
	go func() { done <- b.ApplyStatusChange(context.Background(), "1", model.ColumnDone) }()
	<-f.entered

	got, _ := b.Task("1")
	if got.Status != model.ColumnDone {
		t.Fatalf("expected optimistic done before confirmation; got %q", got.Status)
	}
	if b.Pending() != 1 {
		t.Fatalf("expected one pending change; got %d", b.Pending())
	}
	f.release <- errors.New("rejected")
	if err := <-done; err == nil {
		t.Fatalf("expected rejection")
	}
	got, _ = b.Task("1")
	if got.Status != model.ColumnTodo {
		t.Fatalf("expected rollback to todo; got %q", got.Status)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected no pending changes; got %d", b.Pending())
	}
}

func TestApplyReorder_KeepsOtherColumnsInPlace(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(
		task("a", model.ColumnTodo),
		task("x", model.ColumnDone),
		task("b", model.ColumnTodo),
		task("c", model.ColumnTodo),
	)
	b := loadedBoard(t, f)

	if !b.ApplyReorder("c", 0, model.ColumnTodo) {
		t.Fatalf("expected reorder to change order")
	}
	if got := ids(b.Tasks()); !reflect.DeepEqual(got, []string{"c", "x", "a", "b"}) {
		t.Fatalf("unexpected full order: %v", got)
	}
	if got := ids(b.Column(model.ColumnTodo)); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("unexpected todo order: %v", got)
	}

	// Clamped past the end.
	if !b.ApplyReorder("c", 99, model.ColumnTodo) {
		t.Fatalf("expected clamped reorder to change order")
	}
	if got := ids(b.Column(model.ColumnTodo)); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected todo order after clamp: %v", got)
	}
	if b.ApplyReorder("x", 0, model.ColumnTodo) {
		t.Fatalf("expected reorder of a task outside the column to be a no-op")
	}
	if n := len(f.Calls("update")); n != 0 {
		t.Fatalf("expected reorder to stay local; got %d backend calls", n)
	}
}

func TestToggleSubtask(t *testing.T) {
	t.Parallel()

	withSubs := task("1", model.ColumnTodo)
	withSubs.Subtasks = []model.Subtask{{ID: "11", Title: "a"}, {ID: "12", Title: "b", Completed: true}}
	f := newFakeBackend(withSubs)
	b := loadedBoard(t, f)
	ctx := context.Background()

	if err := b.ToggleSubtask(ctx, "1", "11", true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	calls := f.Calls("subtask")
	if len(calls) != 1 || calls[0].ID != "11" || !calls[0].Done {
		t.Fatalf("unexpected subtask calls: %+v", calls)
	}
	got, _ := b.Task("1")
	if done, total := got.SubtaskProgress(); done != 2 || total != 2 {
		t.Fatalf("expected 2/2 done; got %d/%d", done, total)
	}

	// Unknown ids and unchanged values never reach the backend.
	for _, tc := range []struct {
		name      string
		taskID    model.ID
		subtaskID model.ID
		completed bool
	}{
		{name: "unknown task", taskID: "404", subtaskID: "11", completed: false},
		{name: "unknown subtask", taskID: "1", subtaskID: "404", completed: false},
		{name: "unchanged", taskID: "1", subtaskID: "12", completed: true},
	} {
		if err := b.ToggleSubtask(ctx, tc.taskID, tc.subtaskID, tc.completed); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
	}
	if n := len(f.Calls("subtask")); n != 1 {
		t.Fatalf("expected no extra backend calls; got %d", n)
	}

	f.failOn("subtask", errors.New("nope"))
	err := b.ToggleSubtask(ctx, "1", "12", false)
	var merr MutationError
	if !errors.As(err, &merr) || merr.Op != OpSubtask {
		t.Fatalf("expected subtask MutationError; got %v", err)
	}
	got, _ = b.Task("1")
	if !got.Subtasks[1].Completed {
		t.Fatalf("expected subtask restored to completed")
	}
}

func TestCreateTask_DefaultsAndReload(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo))
	b := loadedBoard(t, f)

	created, err := b.CreateTask(context.Background(), model.TaskDraft{Title: "  Nouvelle  "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != model.ColumnTodo || created.SprintID != "9" || created.Title != "Nouvelle" {
		t.Fatalf("unexpected created task: %+v", created)
	}
	if n := len(f.Calls("list")); n != 2 {
		t.Fatalf("expected reload after create; got %d list calls", n)
	}
	if _, ok := b.Task(created.ID); !ok {
		t.Fatalf("expected created task on board after reload")
	}
}

func TestValidation_HappensBeforeNetwork(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo))
	b := loadedBoard(t, f)
	ctx := context.Background()

	blank := "   "
	self := []model.ID{"1"}
	long := strings.Repeat("x", 256)
	bad := model.Column("later")

	cases := []struct {
		name  string
		run   func() error
		field string
	}{
		{name: "empty title", field: "title", run: func() error {
			_, err := b.CreateTask(ctx, model.TaskDraft{Title: " "})
			return err
		}},
		{name: "long title", field: "title", run: func() error {
			_, err := b.CreateTask(ctx, model.TaskDraft{Title: long})
			return err
		}},
		{name: "empty subtask title", field: "subtasks[0].title", run: func() error {
			_, err := b.CreateTask(ctx, model.TaskDraft{Title: "ok", Subtasks: []model.Subtask{{Title: " "}}})
			return err
		}},
		{name: "blank patch title", field: "title", run: func() error {
			return b.UpdateTask(ctx, "1", model.TaskPatch{Title: &blank})
		}},
		{name: "bad patch status", field: "status", run: func() error {
			return b.UpdateTask(ctx, "1", model.TaskPatch{Status: &bad})
		}},
		{name: "self prerequisite", field: "prerequisiteTaskIds", run: func() error {
			return b.UpdateTask(ctx, "1", model.TaskPatch{PrerequisiteTaskIDs: &self})
		}},
		{name: "blank subtask", field: "title", run: func() error {
			return b.AddSubtask(ctx, "1", "  ")
		}},
	}
	for _, tc := range cases {
		err := tc.run()
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError; got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: expected field %q; got %q", tc.name, tc.field, verr.Field)
		}
	}
	if calls := f.Calls(""); len(calls) != 1 {
		t.Fatalf("expected only the initial load to reach the backend; got %+v", calls)
	}
}

func TestUpdateDeleteAndSubtasks_Reload(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo), task("2", model.ColumnTodo))
	b := loadedBoard(t, f)
	ctx := context.Background()

	title := "Renamed"
	prereqs := []model.ID{"2"}
	if err := b.UpdateTask(ctx, "1", model.TaskPatch{Title: &title, PrerequisiteTaskIDs: &prereqs}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := b.Task("1")
	if got.Title != "Renamed" || !reflect.DeepEqual(got.PrerequisiteTaskIDs, prereqs) {
		t.Fatalf("expected reloaded task; got %+v", got)
	}

	if err := b.AddSubtask(ctx, "1", "Écrire les tests"); err != nil {
		t.Fatalf("add subtask: %v", err)
	}
	got, _ = b.Task("1")
	if len(got.Subtasks) != 1 || got.Subtasks[0].ID.IsZero() {
		t.Fatalf("expected subtask with server id; got %+v", got.Subtasks)
	}

	if err := b.DeleteTask(ctx, "2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := b.Task("2"); ok {
		t.Fatalf("expected task 2 gone after delete")
	}

	f.failOn("delete", serverError{msg: "Accès refusé"})
	err := b.DeleteTask(ctx, "1")
	if UserMessage(err, "") != "Accès refusé" {
		t.Fatalf("expected server message on delete failure; got %v", err)
	}
	if _, ok := b.Task("1"); !ok {
		t.Fatalf("expected task kept after failed delete")
	}
}

func TestOnChange_NotifiesObservers(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo))
	b := New(f, "1", "9", nil)
	n := 0
	b.OnChange(func() {
		n++
		_ = b.Tasks()
	})

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one notification after load; got %d", n)
	}
	if err := b.ApplyStatusChange(context.Background(), "1", model.ColumnDone); err != nil {
		t.Fatalf("status: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected notifications for commit and confirmation; got %d", n)
	}
}

func TestPrerequisiteCandidatesExcludeSelf(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo), task("2", model.ColumnDone), task("3", model.ColumnTodo))
	b := loadedBoard(t, f)

	if got := ids(b.PrerequisiteCandidates("2")); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Fatalf("unexpected candidates: %v", got)
	}
}

func TestCycles(t *testing.T) {
	t.Parallel()

	a := task("a", model.ColumnTodo)
	a.PrerequisiteTaskIDs = []model.ID{"b"}
	bt := task("b", model.ColumnTodo)
	bt.PrerequisiteTaskIDs = []model.ID{"a"}
	c := task("c", model.ColumnDone)
	d := task("d", model.ColumnTodo)
	d.PrerequisiteTaskIDs = []model.ID{"c", "a"}

	cycles := Cycles([]model.Task{a, bt, c, d})
	want := [][]model.ID{{"a", "b", "a"}}
	if !reflect.DeepEqual(cycles, want) {
		t.Fatalf("expected %v; got %v", want, cycles)
	}

	if got := ids(Blocked(d, []model.Task{a, bt, c, d})); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected d blocked by a only; got %v", got)
	}
}
