package tui

import (
	"fmt"
	"strings"

	"sprintdesk/internal/board"
	"sprintdesk/internal/model"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// boardSelection is the focused card. TaskID is preferred over the index so focus follows a
// task across reloads and moves.
type boardSelection struct {
	Col    int
	Item   int
	TaskID model.ID
}

type boardColumn struct {
	def   model.ColumnDef
	tasks []model.Task
}

type boardColumns struct {
	cols []boardColumn
	// all is every task of the board, used to resolve prerequisites.
	all []model.Task
}

func buildBoardColumns(b *board.Board) boardColumns {
	out := boardColumns{all: b.Tasks()}
	for _, def := range model.Columns() {
		out.cols = append(out.cols, boardColumn{def: def, tasks: b.Column(def.ID)})
	}
	return out
}

func (bc boardColumns) indexOfTask(id model.ID) (int, int, bool) {
	if id.IsZero() {
		return 0, 0, false
	}
	for ci := range bc.cols {
		for ii := range bc.cols[ci].tasks {
			if bc.cols[ci].tasks[ii].ID == id {
				return ci, ii, true
			}
		}
	}
	return 0, 0, false
}

func (bc boardColumns) clamp(sel boardSelection) boardSelection {
	if len(bc.cols) == 0 {
		return boardSelection{Item: -1}
	}
	if ci, ii, ok := bc.indexOfTask(sel.TaskID); ok {
		sel.Col, sel.Item = ci, ii
	} else {
		sel.TaskID = ""
	}
	sel.Col = clampInt(sel.Col, 0, len(bc.cols)-1)
	n := len(bc.cols[sel.Col].tasks)
	if n == 0 {
		sel.Item = -1
		return sel
	}
	sel.Item = clampInt(sel.Item, 0, n-1)
	sel.TaskID = bc.cols[sel.Col].tasks[sel.Item].ID
	return sel
}

func (bc boardColumns) selected(sel boardSelection) (model.Task, bool) {
	sel = bc.clamp(sel)
	if sel.Item < 0 {
		return model.Task{}, false
	}
	return bc.cols[sel.Col].tasks[sel.Item], true
}

// move shifts the selection by dc columns and di items.
func (bc boardColumns) move(sel boardSelection, dc, di int) boardSelection {
	sel = bc.clamp(sel)
	if dc != 0 {
		sel.Col = clampInt(sel.Col+dc, 0, len(bc.cols)-1)
		sel.TaskID = ""
	}
	if di != 0 && sel.Item >= 0 {
		sel.Item += di
		sel.TaskID = ""
	}
	return bc.clamp(sel)
}

// dropTarget is where a grabbed card would land. Item -1 means the column itself.
type dropTarget struct {
	Col  int
	Item int
}

// candidates lists the drop targets for the reconciler, most specific first.
func (bc boardColumns) candidates(t dropTarget) []string {
	if t.Col < 0 || t.Col >= len(bc.cols) {
		return nil
	}
	col := bc.cols[t.Col]
	out := make([]string, 0, 2)
	if t.Item >= 0 && t.Item < len(col.tasks) {
		out = append(out, col.tasks[t.Item].ID.String())
	}
	return append(out, string(col.def.ID))
}

func (bc boardColumns) moveTarget(t dropTarget, dc, di int) dropTarget {
	if len(bc.cols) == 0 {
		return t
	}
	if dc != 0 {
		t.Col = clampInt(t.Col+dc, 0, len(bc.cols)-1)
		t.Item = -1
	}
	if di != 0 {
		n := len(bc.cols[t.Col].tasks)
		t.Item = clampInt(t.Item+di, -1, n-1)
	}
	return t
}

type columnsRender struct {
	sel     boardSelection
	grabbed model.ID
	target  *dropTarget
}

func renderBoardColumns(bc boardColumns, opts columnsRender, width, height int) string {
	n := len(bc.cols)
	if n == 0 {
		return normalizePane("", width, height)
	}
	sel := bc.clamp(opts.sel)

	gap := 2
	colW := (width - gap*(n-1)) / n
	if colW < 14 {
		colW = 14
	}
	innerW := colW - 2

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg).Width(colW)
	headerActive := lipgloss.NewStyle().Bold(true).Foreground(colorSelectedFg).Background(colorSelectedBg).Width(colW)
	headerTarget := lipgloss.NewStyle().Bold(true).Foreground(colorAccentFg).Background(colorAccent).Width(colW)
	cardStyle := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	cardSelected := cardStyle.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	cardGrabbed := cardStyle.Background(colorGrabBg).Bold(true)
	metaStyle := lipgloss.NewStyle().Foreground(colorCardMetaFg)

	renderCard := func(t model.Task, selected, target bool) string {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			title = "(sans titre)"
		}
		prefix := "  "
		if t.ID == opts.grabbed {
			prefix = glyphGrab() + " "
		} else if target {
			prefix = glyphArrow() + " "
		}
		lines := wrapWords(title, innerW-xansi.StringWidth(prefix))
		for i := range lines {
			if i == 0 {
				lines[i] = prefix + lines[i]
			} else {
				lines[i] = strings.Repeat(" ", xansi.StringWidth(prefix)) + lines[i]
			}
		}

		meta := []string{t.AssigneeName()}
		if done, total := t.SubtaskProgress(); total > 0 {
			meta = append(meta, fmt.Sprintf("%d/%d", done, total))
		}
		if blocked := board.Blocked(t, bc.all); len(blocked) > 0 {
			meta = append(meta, fmt.Sprintf("%s %d", glyphBlocked(), len(blocked)))
		}
		metaLine := "  " + strings.Join(meta, " · ")
		if !selected {
			metaLine = metaStyle.Render(metaLine)
		}
		lines = append(lines, metaLine)

		inner := normalizePane(strings.Join(lines, "\n"), innerW, 0)
		switch {
		case t.ID == opts.grabbed:
			return cardGrabbed.Render(inner)
		case selected || target:
			return cardSelected.Render(inner)
		default:
			return cardStyle.Render(inner)
		}
	}

	rendered := make([]string, 0, n)
	for ci, c := range bc.cols {
		head := truncateText(fmt.Sprintf(" %s (%d)", c.def.Label, len(c.tasks)), colW)
		hs := headerStyle
		switch {
		case opts.target != nil && opts.target.Col == ci && opts.target.Item < 0:
			hs = headerTarget
		case opts.target == nil && ci == sel.Col:
			hs = headerActive
		}
		lines := []string{hs.Render(head), ""}
		if len(c.tasks) == 0 {
			lines = append(lines, styleMuted().Render("  (vide)"))
		}
		for ii, t := range c.tasks {
			selected := opts.target == nil && ci == sel.Col && ii == sel.Item
			target := opts.target != nil && opts.target.Col == ci && opts.target.Item == ii
			lines = append(lines, strings.Split(renderCard(t, selected, target), "\n")...)
			if ii < len(c.tasks)-1 {
				lines = append(lines, styleMuted().Render(" "+strings.Repeat(glyphHRule(), max(innerW, 0))+" "))
			}
		}
		rendered = append(rendered, normalizePane(strings.Join(lines, "\n"), colW, height))
	}

	out := rendered[0]
	sep := strings.Repeat(" ", gap)
	for _, r := range rendered[1:] {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, sep, r)
	}
	return normalizePane(out, width, height)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
