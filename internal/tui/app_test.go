package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sprintdesk/internal/backendtest"
	"sprintdesk/internal/model"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"
)

type harness struct {
	srv  *backendtest.Server
	sess *session.Session
	db   *store.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := backendtest.New(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       "ada@example.org",
		"firstname": "Ada",
		"lastname":  "Lovelace",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	srv.Token = tok

	s, err := session.New(session.Options{APIURL: srv.APIURL()}, tok)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(s.Close)

	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &harness{srv: srv, sess: s, db: db}
}

// model returns a sized app bound to project 3 / sprint 9 with its board loaded.
func (h *harness) model(t *testing.T) appModel {
	t.Helper()
	m := newAppModel(context.Background(), h.sess, h.db, nil, store.UIState{ProjectID: "3", SprintID: "9"})
	if err := m.board.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(appModel)
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m appModel, keys ...tea.KeyMsg) (appModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(appModel)
	}
	return m, cmd
}

// finish runs an operation command synchronously and feeds its result back.
func finish(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	msg := cmd()
	done, ok := msg.(opDoneMsg)
	if !ok {
		t.Fatalf("expected opDoneMsg; got %T", msg)
	}
	if done.err != nil {
		t.Fatalf("%s failed: %v", done.op, done.err)
	}
	next, _ := m.Update(done)
	return next.(appModel)
}

func TestApp_GrabAndDropMovesTask(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.AddTask(model.Task{ID: "40", Title: "Écrire le rapport", Status: model.ColumnTodo, SprintID: "9"})
	m := h.model(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if m.target == nil {
		t.Fatalf("expected grab mode")
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.target.Col != 1 || m.target.Item != -1 {
		t.Fatalf("unexpected target: %+v", *m.target)
	}
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.target != nil {
		t.Fatalf("expected grab mode to end on drop")
	}
	m = finish(t, m, cmd)

	if got := h.srv.Tasks()[0].Status; got != model.ColumnInProgress {
		t.Fatalf("expected backend status in-progress; got %q", got)
	}
	if tk, _ := m.board.Task("40"); tk.Status != model.ColumnInProgress {
		t.Fatalf("expected board status in-progress; got %q", tk.Status)
	}
	if sel := m.columns().clamp(m.sel); sel.Col != 1 {
		t.Fatalf("expected selection to follow the task; got %+v", sel)
	}
}

func TestApp_GrabCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.AddTask(model.Task{ID: "40", Title: "A", Status: model.ColumnTodo, SprintID: "9"})
	m := h.model(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyEsc})
	if m.target != nil {
		t.Fatalf("expected grab mode to end")
	}
	if n := len(h.srv.Requests("PUT /tasks/40")); n != 0 {
		t.Fatalf("expected no update; got %d", n)
	}
}

func TestApp_DeleteNeedsConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.AddTask(model.Task{ID: "40", Title: "A", Status: model.ColumnTodo, SprintID: "9"})
	m := h.model(t)

	m, _ = press(t, m, runeKey("d"))
	if m.modal != modalConfirmDeleteTask {
		t.Fatalf("expected confirm modal; got %v", m.modal)
	}
	if !strings.Contains(m.View(), "Supprimer") {
		t.Fatalf("expected modal in view")
	}
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil || m.modal != modalNone {
		t.Fatalf("expected esc to close the modal without a command")
	}

	// Enter on the default focus cancels.
	m, cmd = press(t, m, runeKey("d"), tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected cancel by default")
	}

	m, cmd = press(t, m, runeKey("d"), tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyEnter})
	m = finish(t, m, cmd)
	if n := len(h.srv.Requests("DELETE /tasks/40")); n != 1 {
		t.Fatalf("expected one delete; got %d", n)
	}
	if len(m.board.Tasks()) != 0 {
		t.Fatalf("expected empty board after delete")
	}
}

func TestApp_ToggleSubtask(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.AddTask(model.Task{ID: "40", Title: "A", Status: model.ColumnTodo, SprintID: "9",
		Subtasks: []model.Subtask{{ID: "41", Title: "relire"}}})
	m := h.model(t)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter}, runeKey("J"), runeKey("x"))
	if !m.showDetail || m.subCursor != 0 {
		t.Fatalf("expected detail with subtask cursor; got detail=%v cursor=%d", m.showDetail, m.subCursor)
	}
	finish(t, m, cmd)

	reqs := h.srv.Requests("PUT /subtasks/41/status")
	if len(reqs) != 1 || !strings.Contains(reqs[0].Body, model.SubtaskLabelDone) {
		t.Fatalf("unexpected subtask requests: %+v", reqs)
	}
	if tk, _ := m.board.Task("40"); !tk.Subtasks[0].Completed {
		t.Fatalf("expected subtask completed on the board")
	}
}

func TestApp_CreateTaskInSelectedColumn(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	m := h.model(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight}, runeKey("n"))
	if m.modal != modalNewTask {
		t.Fatalf("expected new task modal")
	}
	m, cmd := press(t, m, runeKey("Préparer la démo"), tea.KeyMsg{Type: tea.KeyEnter})
	finish(t, m, cmd)

	tasks := h.srv.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "Préparer la démo" || tasks[0].Status != model.ColumnInProgress {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestApp_ViewShowsBoardAndUnread(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.AddTask(model.Task{ID: "40", Title: "Écrire le rapport", Status: model.ColumnTodo, SprintID: "9"})
	h.srv.SetUnread("7", 3)
	m := h.model(t)
	if err := h.sess.Notifications.LoadInitialCounts(context.Background()); err != nil {
		t.Fatalf("counts: %v", err)
	}

	out := m.View()
	for _, want := range []string{"À Faire", "En Cours", "Terminé", "Écrire le rapport", "3 non lus", "Ada Lovelace"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
}

func TestApp_NoBoardSelected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	m := newAppModel(context.Background(), h.sess, h.db, nil, store.UIState{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(appModel)
	if !strings.Contains(m.View(), "Aucun tableau") {
		t.Fatalf("expected empty board hint")
	}

	m, cmd := press(t, m, runeKey("b"), runeKey("3/9"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.board == nil || m.board.ProjectID() != "3" || m.board.SprintID() != "9" {
		t.Fatalf("expected board 3/9 to be bound")
	}
	finish(t, m, cmd)

	st, err := h.db.LoadUIState(context.Background())
	if err != nil {
		t.Fatalf("ui state: %v", err)
	}
	if st.ProjectID != "3" || st.SprintID != "9" {
		t.Fatalf("expected board to be remembered; got %+v", st)
	}
}

func TestApp_OpenThreadMarksRead(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.SetUnread("7", 2)
	h.srv.AddMessage(model.Message{ProjectID: "7", SenderFirstname: "Grace", SenderLastname: "Hopper", Content: "Bonjour"})
	m := h.model(t)
	if err := h.sess.Notifications.LoadInitialCounts(context.Background()); err != nil {
		t.Fatalf("counts: %v", err)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.view != viewMessages {
		t.Fatalf("expected messages view")
	}
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = finish(t, m, cmd)

	if n := len(h.srv.Requests("PUT /messages/project/7/mark-as-read")); n != 1 {
		t.Fatalf("expected one mark-as-read; got %d", n)
	}
	out := m.View()
	if !strings.Contains(out, "Bonjour") || !strings.Contains(out, "Grace Hopper") {
		t.Fatalf("expected thread in view:\n%s", out)
	}
}

func TestParseBoardRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		project model.ID
		sprint  model.ID
		ok      bool
	}{
		{"3/9", "3", "9", true},
		{" 3 9 ", "3", "9", true},
		{"3", "", "", false},
		{"3/9/1", "", "", false},
	}
	for _, tt := range tests {
		p, s, ok := parseBoardRef(tt.in)
		if p != tt.project || s != tt.sprint || ok != tt.ok {
			t.Fatalf("parseBoardRef(%q) = %q, %q, %v", tt.in, p, s, ok)
		}
	}
}

func TestApp_SwitchingBoardsReleasesThePrevious(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	m := h.model(t)
	first := m.board
	if !first.Loaded() {
		t.Fatalf("expected first board loaded")
	}

	m.bindBoard("3", "10")
	second := m.board
	if second == first {
		t.Fatalf("expected a new board")
	}
	if first.Loaded() {
		t.Fatalf("expected the previous board to be released")
	}
	if err := second.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	m.bindBoard("3", "9")
	if second.Loaded() || m.board == second {
		t.Fatalf("expected the second board to be released on the next switch")
	}
}
