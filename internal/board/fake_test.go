package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"sprintdesk/internal/model"
)

type call struct {
	Op    string
	ID    model.ID
	Patch model.TaskPatch
	Done  bool
}

// fakeBackend is a server-side task list that records every call.
type fakeBackend struct {
	mu      sync.Mutex
	tasks   []model.Task
	calls   []call
	nextID  int
	fail    map[string]error
	entered chan struct{}
	release chan error
}

func newFakeBackend(tasks ...model.Task) *fakeBackend {
	return &fakeBackend{tasks: model.CloneTasks(tasks), nextID: 100, fail: map[string]error{}}
}

func (f *fakeBackend) failOn(op string, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

func (f *fakeBackend) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.fail[c.Op]
}

func (f *fakeBackend) Calls(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) ListTasks(_ context.Context, projectID, sprintID model.ID) ([]model.Task, error) {
	if err := f.record(call{Op: "list", ID: sprintID}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.CloneTasks(f.tasks), nil
}

func (f *fakeBackend) CreateTask(_ context.Context, d model.TaskDraft) (model.Task, error) {
	if err := f.record(call{Op: "create"}); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := model.Task{
		ID:                  model.ID(fmt.Sprint(f.nextID)),
		Title:               d.Title,
		Description:         d.Description,
		Status:              d.Status,
		SprintID:            d.SprintID,
		Subtasks:            d.Subtasks,
		PrerequisiteTaskIDs: d.PrerequisiteTaskIDs,
	}
	f.tasks = append(f.tasks, t)
	return t.Clone(), nil
}

func (f *fakeBackend) UpdateTask(_ context.Context, id model.ID, p model.TaskPatch) (model.Task, error) {
	err := f.record(call{Op: "update", ID: id, Patch: p})
	if f.entered != nil {
		f.entered <- struct{}{}
		err = <-f.release
	}
	if err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if p.Status != nil {
			f.tasks[i].Status = *p.Status
		}
		if p.Title != nil {
			f.tasks[i].Title = *p.Title
		}
		if p.Description != nil {
			f.tasks[i].Description = *p.Description
		}
		if p.PrerequisiteTaskIDs != nil {
			f.tasks[i].PrerequisiteTaskIDs = *p.PrerequisiteTaskIDs
		}
		return f.tasks[i].Clone(), nil
	}
	return model.Task{}, errors.New("not found")
}

func (f *fakeBackend) DeleteTask(_ context.Context, id model.ID) error {
	if err := f.record(call{Op: "delete", ID: id}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeBackend) UpdateSubtaskStatus(_ context.Context, id model.ID, completed bool) error {
	return f.record(call{Op: "subtask", ID: id, Done: completed})
}

func (f *fakeBackend) CreateSubtask(_ context.Context, taskID model.ID, title string) (model.Subtask, error) {
	if err := f.record(call{Op: "add-subtask", ID: taskID}); err != nil {
		return model.Subtask{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	st := model.Subtask{ID: model.ID(fmt.Sprint(f.nextID)), Title: title}
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			f.tasks[i].Subtasks = append(f.tasks[i].Subtasks, st)
		}
	}
	return st, nil
}

func (f *fakeBackend) DeleteSubtask(_ context.Context, id model.ID) error {
	return f.record(call{Op: "remove-subtask", ID: id})
}

// serverError mimics a backend error carrying a server message.
type serverError struct{ msg string }

func (e serverError) Error() string       { return "server: " + e.msg }
func (e serverError) UserMessage() string { return e.msg }

func task(id string, col model.Column) model.Task {
	return model.Task{ID: model.ID(id), Title: "Task " + id, Status: col, SprintID: "9"}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID.String()
	}
	return out
}

func loadedBoard(t *testing.T, f *fakeBackend) *Board {
	t.Helper()
	b := New(f, "1", "9", nil)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return b
}
