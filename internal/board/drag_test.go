package board

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"sprintdesk/internal/model"
)

func TestDragEnd_OntoTaskInOtherColumnMovesIt(t *testing.T) {
	t.Parallel()

	for _, reject := range []bool{false, true} {
		f := newFakeBackend(task("T1", model.ColumnTodo), task("T2", model.ColumnTodo), task("T3", model.ColumnDone))
		b := loadedBoard(t, f)
		r := NewReconciler(b)
		if reject {
			f.failOn("update", errors.New("refused"))
		}

		if !r.DragStart("T1") {
			t.Fatalf("expected drag start on known task")
		}
		outcome, err := r.DragEnd(context.Background(), "T3")

		calls := f.Calls("update")
		if len(calls) != 1 || calls[0].ID != "T1" || calls[0].Patch.Status == nil || *calls[0].Patch.Status != model.ColumnDone {
			t.Fatalf("expected update of T1 to done; got %+v", calls)
		}
		got, _ := b.Task("T1")
		if reject {
			if err == nil || outcome != OutcomeNone {
				t.Fatalf("expected rejected move; outcome=%v err=%v", outcome, err)
			}
			if got.Status != model.ColumnTodo {
				t.Fatalf("expected T1 back in todo; got %q", got.Status)
			}
			continue
		}
		if err != nil || outcome != OutcomeMove {
			t.Fatalf("expected move; outcome=%v err=%v", outcome, err)
		}
		if got.Status != model.ColumnDone {
			t.Fatalf("expected T1 in done; got %q", got.Status)
		}
	}
}

func TestDragEnd_OntoColumn(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo), task("2", model.ColumnTodo))
	b := loadedBoard(t, f)
	r := NewReconciler(b)
	ctx := context.Background()

	r.DragStart("1")
	outcome, err := r.DragEnd(ctx, "todo")
	if err != nil || outcome != OutcomeNone {
		t.Fatalf("expected drop on own column to be a no-op; outcome=%v err=%v", outcome, err)
	}
	if n := len(f.Calls("update")); n != 0 {
		t.Fatalf("expected no backend call; got %d", n)
	}

	r.DragStart("1")
	r.DragOver("in-progress")
	outcome, err = r.DragEnd(ctx)
	if err != nil || outcome != OutcomeMove {
		t.Fatalf("expected hover target to move task; outcome=%v err=%v", outcome, err)
	}
	got, _ := b.Task("1")
	if got.Status != model.ColumnInProgress {
		t.Fatalf("expected in-progress; got %q", got.Status)
	}
}

func TestDragEnd_WithinColumnReorders(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("a", model.ColumnTodo), task("b", model.ColumnTodo), task("c", model.ColumnTodo))
	b := loadedBoard(t, f)
	r := NewReconciler(b)
	ctx := context.Background()

	r.DragStart("a")
	outcome, err := r.DragEnd(ctx, "c")
	if err != nil || outcome != OutcomeReorder {
		t.Fatalf("expected reorder; outcome=%v err=%v", outcome, err)
	}
	if got := ids(b.Column(model.ColumnTodo)); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Fatalf("unexpected order: %v", got)
	}

	r.DragStart("a")
	if outcome, _ := r.DragEnd(ctx, "a"); outcome != OutcomeNone {
		t.Fatalf("expected drop on itself to be a no-op; got %v", outcome)
	}
	if n := len(f.Calls("update")); n != 0 {
		t.Fatalf("expected reorders to stay local; got %d calls", n)
	}
}

func TestDragEnd_CandidateResolution(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo), task("done", model.ColumnTodo))
	b := loadedBoard(t, f)
	r := NewReconciler(b)
	ctx := context.Background()

	// Only the first candidate decides, even when a later one would resolve.
	r.DragStart("1")
	outcome, err := r.DragEnd(ctx, "ghost-overlay", "done")
	if err != nil || outcome != OutcomeNone {
		t.Fatalf("expected unresolved first candidate to be a no-op; outcome=%v err=%v", outcome, err)
	}
	if n := len(f.Calls("update")); n != 0 {
		t.Fatalf("expected no backend call; got %d", n)
	}
	got, _ := b.Task("1")
	if got.Status != model.ColumnTodo {
		t.Fatalf("expected status unchanged; got %q", got.Status)
	}

	// Column ids win over task ids with the same text.
	r.DragStart("1")
	outcome, err = r.DragEnd(ctx, "done")
	if err != nil || outcome != OutcomeMove {
		t.Fatalf("expected move to done column; outcome=%v err=%v", outcome, err)
	}
	got, _ = b.Task("1")
	if got.Status != model.ColumnDone {
		t.Fatalf("expected done; got %q", got.Status)
	}

	r.DragStart("1")
	if outcome, _ := r.DragEnd(ctx, "nowhere"); outcome != OutcomeNone {
		t.Fatalf("expected unresolved drop to be a no-op; got %v", outcome)
	}
	if outcome, _ := r.DragEnd(ctx, "todo"); outcome != OutcomeNone {
		t.Fatalf("expected drop without active drag to be a no-op; got %v", outcome)
	}
	if r.DragStart("404") {
		t.Fatalf("expected drag start on unknown task to be refused")
	}
}

func TestDragCancel(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(task("1", model.ColumnTodo))
	b := loadedBoard(t, f)
	r := NewReconciler(b)

	r.DragStart("1")
	r.DragOver("done")
	if id, over := r.Active(); id != "1" || over != "done" {
		t.Fatalf("unexpected active drag: %q over %q", id, over)
	}
	r.Cancel()
	if outcome, _ := r.DragEnd(context.Background()); outcome != OutcomeNone {
		t.Fatalf("expected cancelled drag to do nothing; got %v", outcome)
	}
	got, _ := b.Task("1")
	if got.Status != model.ColumnTodo {
		t.Fatalf("expected board untouched; got %q", got.Status)
	}
}
