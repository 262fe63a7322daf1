package tui

import (
	"fmt"
	"strings"

	"sprintdesk/internal/board"
	"sprintdesk/internal/model"

	"github.com/charmbracelet/lipgloss"
)

// renderDetail shows one task: header, description, checklist and prerequisites.
// subCursor is the focused subtask, or -1.
func renderDetail(t model.Task, all []model.Task, subCursor, width, height int) string {
	innerW := width - 2
	if innerW < 10 {
		innerW = 10
	}
	title := lipgloss.NewStyle().Bold(true).Render(truncateText(strings.TrimSpace(t.Title), innerW))
	lines := []string{
		title,
		styleMuted().Render(fmt.Sprintf("#%s · %s · %s", t.ID, t.Status.Label(), t.AssigneeName())),
		"",
	}

	if desc := renderMarkdown(t.Description, innerW); desc != "" {
		lines = append(lines, strings.Split(desc, "\n")...)
	} else {
		lines = append(lines, styleMuted().Render("(pas de description)"))
	}
	lines = append(lines, "")

	done, total := t.SubtaskProgress()
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Sous-tâches %d/%d", done, total)))
	if total == 0 {
		lines = append(lines, styleMuted().Render("  (aucune)"))
	}
	focused := lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg)
	for i, st := range t.Subtasks {
		ln := truncateText(fmt.Sprintf("  %s %s", glyphCheckbox(st.Completed), st.Title), innerW)
		if i == subCursor {
			ln = focused.Render(ln)
		} else if st.Completed {
			ln = styleMuted().Strikethrough(true).Render(ln)
		}
		lines = append(lines, ln)
	}

	if len(t.PrerequisiteTaskIDs) > 0 {
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render("Prérequis"))
		byID := map[model.ID]model.Task{}
		for _, other := range all {
			byID[other.ID] = other
		}
		blocked := map[model.ID]bool{}
		for _, b := range board.Blocked(t, all) {
			blocked[b.ID] = true
		}
		for _, id := range t.PrerequisiteTaskIDs {
			other, ok := byID[id]
			label := "#" + id.String()
			if ok {
				label += " " + other.Title
			}
			mark := glyphCheckbox(ok && !blocked[id])
			ln := truncateText(fmt.Sprintf("  %s %s", mark, label), innerW)
			if blocked[id] {
				ln = styleError().Render(ln)
			}
			lines = append(lines, ln)
		}
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	return normalizePane(body, width, height)
}
