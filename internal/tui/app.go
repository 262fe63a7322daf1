package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sprintdesk/internal/board"
	"sprintdesk/internal/model"
	"sprintdesk/internal/push"
	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type view int

const (
	viewBoard view = iota
	viewMessages
)

func (v view) String() string {
	if v == viewMessages {
		return "messages"
	}
	return "board"
}

func parseView(s string) view {
	if s == "messages" {
		return viewMessages
	}
	return viewBoard
}

type modalKind int

const (
	modalNone modalKind = iota
	modalConfirmDeleteTask
	modalConfirmDeleteSubtask
	modalNewTask
	modalEditTitle
	modalAddSubtask
	modalSwitchBoard
)

// changedMsg is sent whenever the board, the notification store or the channel state changed.
type changedMsg struct{}

type opDoneMsg struct {
	op  string
	ok  string
	err error
}

type sessionStartedMsg struct{ err error }

type minibufferClearMsg struct{ seq int }

type appModel struct {
	ctx     context.Context
	sess    *session.Session
	db      *store.DB
	logger  *slog.Logger
	changes chan struct{}

	board *board.Board
	drag  *board.Reconciler

	width  int
	height int

	view       view
	showDetail bool
	sel        boardSelection
	subCursor  int
	// target is non-nil while a card is grabbed.
	target *dropTarget

	modal        modalKind
	confirmFocus confirmModalFocus
	input        textinput.Model

	projectCursor int
	thread        model.ID
	composer      textinput.Model
	composing     bool

	spinner spinner.Model
	busy    int

	minibuffer    string
	minibufferErr bool
	minibufferSeq int
}

func newAppModel(ctx context.Context, sess *session.Session, db *store.DB, logger *slog.Logger, st store.UIState) appModel {
	if logger == nil {
		logger = slog.Default()
	}
	m := appModel{
		ctx:        ctx,
		sess:       sess,
		db:         db,
		logger:     logger.With(slog.String("component", "tui")),
		changes:    make(chan struct{}, 1),
		view:       parseView(st.View),
		showDetail: st.ShowDetail,
		sel:        boardSelection{TaskID: model.ID(st.SelectedTaskID)},
		subCursor:  -1,
	}
	sess.Notifications.OnChange(m.signal)
	sess.Channel.OnState(func(push.State) { m.signal() })

	m.input = textinput.New()
	m.input.CharLimit = 255
	m.composer = textinput.New()
	m.composer.Placeholder = "Votre message…"
	m.composer.CharLimit = 2000
	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot

	if st.ProjectID != "" && st.SprintID != "" {
		m.bindBoard(model.ID(st.ProjectID), model.ID(st.SprintID))
	}
	return m
}

// signal coalesces change notifications; observers run on other goroutines.
func (m appModel) signal() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func waitForChange(ctx context.Context, ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *appModel) bindBoard(projectID, sprintID model.ID) {
	m.sess.ReleaseBoard(m.board)
	m.board = m.sess.NewBoard(projectID, sprintID)
	m.board.OnChange(m.signal)
	m.drag = board.NewReconciler(m.board)
	m.target = nil
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForChange(m.ctx, m.changes),
		m.spinner.Tick,
		func() tea.Msg { return sessionStartedMsg{err: m.sess.Start(m.ctx)} },
	}
	if m.board != nil {
		cmds = append(cmds, m.loadBoard())
	}
	return tea.Batch(cmds...)
}

func (m appModel) loadBoard() tea.Cmd {
	b := m.board
	return func() tea.Msg {
		return opDoneMsg{op: "load", err: b.Load(m.ctx)}
	}
}

// runOp runs a blocking operation off the update loop and reports it as an opDoneMsg.
func (m *appModel) runOp(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	m.busy++
	ctx := m.ctx
	return func() tea.Msg {
		ok, err := fn(ctx)
		return opDoneMsg{op: op, ok: ok, err: err}
	}
}

func (m *appModel) showMinibuffer(text string, isErr bool) tea.Cmd {
	m.minibufferSeq++
	m.minibuffer = text
	m.minibufferErr = isErr
	seq := m.minibufferSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg { return minibufferClearMsg{seq: seq} })
}

// errorText is the short user-facing text for err. Board and store errors already prefer the
// backend's message.
func errorText(err error) string {
	return board.UserMessage(err, err.Error())
}

func (m appModel) columns() boardColumns {
	if m.board == nil {
		return boardColumns{}
	}
	return buildBoardColumns(m.board)
}

func (m appModel) selectedTask() (model.Task, bool) {
	return m.columns().selected(m.sel)
}

func (m appModel) saveUIState() {
	st := store.UIState{
		View:           m.view.String(),
		SelectedTaskID: m.sel.TaskID.String(),
		ShowDetail:     m.showDetail,
	}
	if m.board != nil {
		st.ProjectID = m.board.ProjectID().String()
		st.SprintID = m.board.SprintID().String()
	}
	if err := m.db.SaveUIState(m.ctx, st); err != nil {
		m.logger.Warn("save ui state failed", slog.String("error", err.Error()))
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.composer.Width = max(m.width*2/3-8, 10)
		m.input.Width = modalBodyWidth(m.width) - 4
		return m, nil

	case changedMsg:
		return m, waitForChange(m.ctx, m.changes)

	case sessionStartedMsg:
		if msg.err != nil {
			return m, m.showMinibuffer("Notifications: "+errorText(msg.err), true)
		}
		return m, nil

	case opDoneMsg:
		if m.busy > 0 && msg.op != "load" {
			m.busy--
		}
		if msg.err != nil {
			return m, m.showMinibuffer(errorText(msg.err), true)
		}
		if msg.ok != "" {
			return m, m.showMinibuffer(msg.ok, false)
		}
		return m, nil

	case minibufferClearMsg:
		if msg.seq == m.minibufferSeq {
			m.minibuffer = ""
			m.minibufferErr = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.saveUIState()
			return m, tea.Quit
		}
		if m.modal != modalNone {
			return m.updateModal(msg)
		}
		if m.view == viewMessages {
			return m.updateMessages(msg)
		}
		if m.target != nil {
			return m.updateGrab(msg)
		}
		return m.updateBoard(msg)
	}

	var cmd tea.Cmd
	switch {
	case m.modal != modalNone:
		m.input, cmd = m.input.Update(msg)
	case m.composing:
		m.composer, cmd = m.composer.Update(msg)
	}
	return m, cmd
}

func (m appModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.saveUIState()
		return m, tea.Quit
	case "tab":
		m.view = viewMessages
		m.sess.Notifications.ClearNewInvitation()
		return m, nil
	case "b":
		m.openInput(modalSwitchBoard, "", "projet/sprint")
		return m, nil
	}
	if m.board == nil {
		return m, nil
	}

	bc := m.columns()
	switch msg.String() {
	case "r":
		return m, m.loadBoard()
	case "left", "h":
		m.sel = bc.move(m.sel, -1, 0)
		m.subCursor = -1
	case "right", "l":
		m.sel = bc.move(m.sel, 1, 0)
		m.subCursor = -1
	case "up", "k":
		m.sel = bc.move(m.sel, 0, -1)
		m.subCursor = -1
	case "down", "j":
		m.sel = bc.move(m.sel, 0, 1)
		m.subCursor = -1
	case "enter":
		m.showDetail = !m.showDetail
		m.subCursor = -1
	case "n":
		m.openInput(modalNewTask, "", "Titre de la tâche")
	}

	t, ok := bc.selected(m.sel)
	if !ok {
		return m, nil
	}
	m.sel = bc.clamp(m.sel)

	switch msg.String() {
	case " ", "space":
		if m.drag.DragStart(t.ID) {
			m.target = &dropTarget{Col: m.sel.Col, Item: m.sel.Item}
			return m, m.showMinibuffer("←/→ colonne  ↑/↓ position  espace: déposer  esc: annuler", false)
		}
	case "<", ",":
		return m, m.moveColumn(t, -1)
	case ">", ".":
		return m, m.moveColumn(t, 1)
	case "e":
		m.openInput(modalEditTitle, t.Title, "Titre de la tâche")
	case "d":
		m.modal = modalConfirmDeleteTask
		m.confirmFocus = confirmFocusCancel
	case "a":
		m.openInput(modalAddSubtask, "", "Titre de la sous-tâche")
	case "J":
		if m.showDetail && len(t.Subtasks) > 0 {
			m.subCursor = clampInt(m.subCursor+1, 0, len(t.Subtasks)-1)
		}
	case "K":
		if m.showDetail && len(t.Subtasks) > 0 {
			m.subCursor = clampInt(m.subCursor-1, 0, len(t.Subtasks)-1)
		}
	case "x":
		if !m.showDetail || m.subCursor < 0 || m.subCursor >= len(t.Subtasks) {
			return m, nil
		}
		st := t.Subtasks[m.subCursor]
		b := m.board
		return m, m.runOp("subtask", func(ctx context.Context) (string, error) {
			return "", b.ToggleSubtask(ctx, t.ID, st.ID, !st.Completed)
		})
	case "D":
		if m.showDetail && m.subCursor >= 0 && m.subCursor < len(t.Subtasks) {
			m.modal = modalConfirmDeleteSubtask
			m.confirmFocus = confirmFocusCancel
		}
	}
	return m, nil
}

func (m *appModel) moveColumn(t model.Task, delta int) tea.Cmd {
	cols := model.Columns()
	idx := 0
	for i, c := range cols {
		if c.ID == t.Status {
			idx = i
		}
	}
	next := clampInt(idx+delta, 0, len(cols)-1)
	if next == idx {
		return nil
	}
	col := cols[next]
	b := m.board
	m.sel.TaskID = t.ID
	return m.runOp("status", func(ctx context.Context) (string, error) {
		return "", b.ApplyStatusChange(ctx, t.ID, col.ID)
	})
}

func (m appModel) updateGrab(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	bc := m.columns()
	switch msg.String() {
	case "esc":
		m.drag.Cancel()
		m.target = nil
		return m, m.showMinibuffer("Déplacement annulé", false)
	case "left", "h":
		t := bc.moveTarget(*m.target, -1, 0)
		m.target = &t
	case "right", "l":
		t := bc.moveTarget(*m.target, 1, 0)
		m.target = &t
	case "up", "k":
		t := bc.moveTarget(*m.target, 0, -1)
		m.target = &t
	case "down", "j":
		t := bc.moveTarget(*m.target, 0, 1)
		m.target = &t
	case " ", "space", "enter":
		candidates := bc.candidates(*m.target)
		active, _ := m.drag.Active()
		m.target = nil
		m.sel.TaskID = active
		drag := m.drag
		return m, m.runOp("drop", func(ctx context.Context) (string, error) {
			outcome, err := drag.DragEnd(ctx, candidates...)
			if err != nil {
				return "", err
			}
			if outcome == board.OutcomeMove {
				return "Statut mis à jour", nil
			}
			return "", nil
		})
	default:
		return m, nil
	}
	if c := bc.candidates(*m.target); len(c) > 0 {
		m.drag.DragOver(c[0])
	}
	return m, nil
}

func (m *appModel) openInput(kind modalKind, value, placeholder string) {
	m.modal = kind
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m appModel) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.modal = modalNone
		m.input.Blur()
		return m, nil
	}

	switch m.modal {
	case modalConfirmDeleteTask, modalConfirmDeleteSubtask:
		switch msg.String() {
		case "tab", "left", "right", "h", "l":
			m.confirmFocus = m.confirmFocus.toggle()
			return m, nil
		case "y":
			m.confirmFocus = confirmFocusConfirm
		case "enter":
		default:
			return m, nil
		}
		kind := m.modal
		m.modal = modalNone
		if m.confirmFocus != confirmFocusConfirm {
			return m, nil
		}
		return m, m.confirmDelete(kind)
	}

	if msg.String() != "enter" {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	value := strings.TrimSpace(m.input.Value())
	kind := m.modal
	m.modal = modalNone
	m.input.Blur()
	return m.submitInput(kind, value)
}

func (m *appModel) confirmDelete(kind modalKind) tea.Cmd {
	t, ok := m.selectedTask()
	if !ok {
		return nil
	}
	b := m.board
	if kind == modalConfirmDeleteTask {
		return m.runOp("delete", func(ctx context.Context) (string, error) {
			return "Tâche supprimée", b.DeleteTask(ctx, t.ID)
		})
	}
	if m.subCursor < 0 || m.subCursor >= len(t.Subtasks) {
		return nil
	}
	st := t.Subtasks[m.subCursor]
	m.subCursor = -1
	return m.runOp("remove-subtask", func(ctx context.Context) (string, error) {
		return "Sous-tâche supprimée", b.RemoveSubtask(ctx, st.ID)
	})
}

func (m appModel) submitInput(kind modalKind, value string) (tea.Model, tea.Cmd) {
	if kind == modalSwitchBoard {
		project, sprint, ok := parseBoardRef(value)
		if !ok {
			return m, m.showMinibuffer("Format attendu: projet/sprint", true)
		}
		m.bindBoard(project, sprint)
		m.sel = boardSelection{}
		m.saveUIState()
		return m, m.loadBoard()
	}

	b := m.board
	if b == nil {
		return m, nil
	}
	switch kind {
	case modalNewTask:
		status := model.ColumnTodo
		if cols := m.columns().cols; m.sel.Col >= 0 && m.sel.Col < len(cols) {
			status = cols[m.sel.Col].def.ID
		}
		return m, m.runOp("create", func(ctx context.Context) (string, error) {
			_, err := b.CreateTask(ctx, model.TaskDraft{Title: value, Status: status})
			return "Tâche créée", err
		})
	}

	t, ok := m.selectedTask()
	if !ok {
		return m, nil
	}
	switch kind {
	case modalEditTitle:
		return m, m.runOp("update", func(ctx context.Context) (string, error) {
			return "Tâche mise à jour", b.UpdateTask(ctx, t.ID, model.TaskPatch{Title: &value})
		})
	case modalAddSubtask:
		return m, m.runOp("add-subtask", func(ctx context.Context) (string, error) {
			return "Sous-tâche ajoutée", b.AddSubtask(ctx, t.ID, value)
		})
	}
	return m, nil
}

// parseBoardRef accepts "project/sprint" or "project sprint".
func parseBoardRef(s string) (model.ID, model.ID, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == ' ' || r == ',' })
	if len(fields) != 2 {
		return "", "", false
	}
	return model.ID(fields[0]), model.ID(fields[1]), true
}

func (m appModel) updateMessages(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	notes := m.sess.Notifications
	if m.composing {
		switch msg.String() {
		case "esc":
			m.composing = false
			m.composer.Blur()
			return m, nil
		case "enter":
			content := m.composer.Value()
			project := m.thread
			m.composer.Reset()
			return m, m.runOp("send", func(ctx context.Context) (string, error) {
				_, err := notes.Send(ctx, project, content)
				return "", err
			})
		}
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}

	rows := projectRows(notes)
	switch msg.String() {
	case "q":
		m.saveUIState()
		return m, tea.Quit
	case "tab":
		m.view = viewBoard
	case "up", "k":
		m.projectCursor = clampInt(m.projectCursor-1, 0, len(rows)-1)
	case "down", "j":
		m.projectCursor = clampInt(m.projectCursor+1, 0, len(rows)-1)
	case "esc":
		m.thread = ""
	case "r":
		return m, m.runOp("counts", func(ctx context.Context) (string, error) {
			return "", notes.LoadInitialCounts(ctx)
		})
	case "c", "i":
		if !m.thread.IsZero() {
			m.composing = true
			return m, m.composer.Focus()
		}
	case "enter":
		if m.projectCursor < 0 || m.projectCursor >= len(rows) {
			return m, nil
		}
		project := rows[m.projectCursor].ID
		m.thread = project
		// Opening a thread marks it read, like the web client.
		return m, m.runOp("thread", func(ctx context.Context) (string, error) {
			if _, err := notes.LoadMessagesForProject(ctx, project); err != nil {
				return "", err
			}
			return "", notes.MarkRead(ctx, project)
		})
	}
	return m, nil
}

func (m appModel) View() string {
	if m.width == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	bodyH := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - 1
	if bodyH < 3 {
		bodyH = 3
	}

	var body string
	switch m.view {
	case viewMessages:
		body = m.renderMessages(bodyH)
	default:
		body = m.renderBoard(bodyH)
	}
	if modal := m.renderModal(); modal != "" {
		body = lipgloss.Place(m.width, bodyH, lipgloss.Center, lipgloss.Center, modal,
			lipgloss.WithWhitespaceChars(" "))
	}
	return strings.Join([]string{header, normalizePane(body, m.width, bodyH), footer}, "\n")
}

func (m appModel) renderHeader() string {
	left := lipgloss.NewStyle().Bold(true).Render("sprintdesk")
	if name := m.sess.Claims.DisplayName(); name != "" {
		left += "  " + name
	}
	if m.board != nil {
		left += styleMuted().Render(fmt.Sprintf("  Projet %s / Sprint %s", m.board.ProjectID(), m.board.SprintID()))
	}

	var right []string
	if m.busy > 0 || (m.board != nil && m.board.Pending() > 0) {
		right = append(right, m.spinner.View())
	}
	if n := m.sess.Notifications.TotalUnread(); n > 0 {
		right = append(right, styleBadge().Render(fmt.Sprintf("%d non lus", n)))
	}
	if m.sess.Notifications.HasNewInvitation() {
		right = append(right, lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("invitation"))
	}
	state := m.sess.Channel.State()
	dot := lipgloss.NewStyle().Foreground(colorMuted)
	if state == push.StateConnected {
		dot = dot.Foreground(colorOKFg)
	}
	right = append(right, dot.Render(glyphDot(state == push.StateConnected)+" "+state.String()))

	r := strings.Join(right, "  ")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(r)
	if gap < 1 {
		gap = 1
	}
	return truncateText(left+strings.Repeat(" ", gap)+r, m.width)
}

func (m appModel) renderFooter() string {
	if m.minibuffer != "" {
		if m.minibufferErr {
			return truncateText(styleError().Render(m.minibuffer), m.width)
		}
		return truncateText(m.minibuffer, m.width)
	}
	var help string
	switch {
	case m.view == viewMessages && m.composing:
		help = "entrée: envoyer  esc: fermer"
	case m.view == viewMessages:
		help = "↑/↓: projet  entrée: ouvrir  c: écrire  r: recharger  tab: tableau  q: quitter"
	case m.target != nil:
		help = "←/→ colonne  ↑/↓ position  espace: déposer  esc: annuler"
	case m.showDetail:
		help = "J/K: sous-tâche  x: cocher  a: ajouter  D: supprimer  entrée: fermer  q: quitter"
	default:
		help = "espace: déplacer  </>: statut  entrée: détail  n: nouvelle  e: titre  d: supprimer  b: tableau  tab: messages  q: quitter"
	}
	return truncateText(styleMuted().Render(help), m.width)
}

func (m appModel) renderBoard(height int) string {
	if m.board == nil {
		return styleMuted().Render("Aucun tableau sélectionné. b: choisir projet/sprint")
	}
	if !m.board.Loaded() {
		if err := m.board.Err(); err != nil {
			return styleError().Render(errorText(err))
		}
		return m.spinner.View() + " Chargement des tâches…"
	}

	bc := m.columns()
	opts := columnsRender{sel: m.sel, target: m.target}
	if m.target != nil {
		opts.grabbed, _ = m.drag.Active()
	}
	if !m.showDetail {
		return renderBoardColumns(bc, opts, m.width, height)
	}
	boardW := m.width * 3 / 5
	detailW := m.width - boardW - 1
	left := renderBoardColumns(bc, opts, boardW, height)
	right := normalizePane("", detailW, height)
	if t, ok := bc.selected(m.sel); ok {
		right = renderDetail(t, bc.all, m.subCursor, detailW, height)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func (m appModel) renderMessages(height int) string {
	notes := m.sess.Notifications
	rows := projectRows(notes)
	var thread *threadView
	if !m.thread.IsZero() {
		thread = &threadView{
			projectID: m.thread,
			state:     notes.LoadState(m.thread),
			messages:  notes.Messages(m.thread),
			composer:  m.composer.View(),
			composing: m.composing,
		}
	}
	return renderMessagesView(rows, clampInt(m.projectCursor, 0, len(rows)-1), thread, m.width, height)
}

func (m appModel) renderModal() string {
	switch m.modal {
	case modalConfirmDeleteTask:
		t, _ := m.selectedTask()
		return renderConfirmModal(m.width, "Supprimer la tâche",
			fmt.Sprintf("Supprimer « %s » ? Cette action est définitive.", t.Title), "Supprimer", "Annuler", m.confirmFocus)
	case modalConfirmDeleteSubtask:
		t, _ := m.selectedTask()
		title := ""
		if m.subCursor >= 0 && m.subCursor < len(t.Subtasks) {
			title = t.Subtasks[m.subCursor].Title
		}
		return renderConfirmModal(m.width, "Supprimer la sous-tâche",
			fmt.Sprintf("Supprimer « %s » ?", title), "Supprimer", "Annuler", m.confirmFocus)
	case modalNewTask:
		return renderInputModal(m.width, "Nouvelle tâche", m.input.View(), "entrée: créer   esc: annuler")
	case modalEditTitle:
		return renderInputModal(m.width, "Modifier le titre", m.input.View(), "entrée: enregistrer   esc: annuler")
	case modalAddSubtask:
		return renderInputModal(m.width, "Nouvelle sous-tâche", m.input.View(), "entrée: ajouter   esc: annuler")
	case modalSwitchBoard:
		return renderInputModal(m.width, "Ouvrir un tableau", m.input.View(), "projet/sprint, par exemple 3/7")
	}
	return ""
}
