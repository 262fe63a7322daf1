package tui

import (
	"fmt"
	"strings"

	"sprintdesk/internal/model"
	"sprintdesk/internal/notify"

	"github.com/charmbracelet/lipgloss"
)

type projectRow struct {
	ID     model.ID
	Unread int
}

func projectRows(s *notify.Store) []projectRow {
	ids := s.Projects()
	out := make([]projectRow, 0, len(ids))
	for _, id := range ids {
		out = append(out, projectRow{ID: id, Unread: s.UnreadCount(id)})
	}
	return out
}

type threadView struct {
	projectID model.ID
	state     notify.LoadState
	messages  []model.Message
	composer  string
	composing bool
}

func renderMessagesView(rows []projectRow, cursor int, thread *threadView, width, height int) string {
	listW := width / 3
	if listW < 18 {
		listW = 18
	}
	threadW := width - listW - 2
	if threadW < 20 {
		threadW = 20
	}

	selected := lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	lines := []string{lipgloss.NewStyle().Bold(true).Render("Projets"), ""}
	if len(rows) == 0 {
		lines = append(lines, styleMuted().Render("(aucun message)"))
	}
	for i, r := range rows {
		label := "Projet " + r.ID.String()
		if r.Unread > 0 {
			label += fmt.Sprintf("  (%d)", r.Unread)
		}
		ln := truncateText(" "+label, listW)
		switch {
		case i == cursor:
			ln = selected.Render(normalizePane(ln, listW, 1))
		case r.Unread > 0:
			ln = lipgloss.NewStyle().Bold(true).Render(ln)
		}
		lines = append(lines, ln)
	}
	list := normalizePane(strings.Join(lines, "\n"), listW, height)

	right := renderThread(thread, threadW, height)
	return lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", right)
}

func renderThread(t *threadView, width, height int) string {
	if t == nil {
		return normalizePane(styleMuted().Render("entrée: ouvrir la conversation du projet"), width, height)
	}
	header := lipgloss.NewStyle().Bold(true).Render("Projet " + t.projectID.String())
	var body []string
	switch {
	case t.state == notify.Loading && len(t.messages) == 0:
		body = append(body, styleMuted().Render("Chargement…"))
	case len(t.messages) == 0:
		body = append(body, styleMuted().Render("(aucun message)"))
	}
	for _, msg := range t.messages {
		stamp := ""
		if !msg.SentAt.IsZero() {
			stamp = msg.SentAt.Local().Format("02/01 15:04") + " "
		}
		who := msg.SenderName()
		if who == "" {
			who = "#" + msg.SenderID.String()
		}
		head := styleMuted().Render(stamp) + lipgloss.NewStyle().Bold(!msg.IsRead).Render(who)
		body = append(body, head)
		for _, ln := range wrapWords(msg.Content, width-2) {
			body = append(body, "  "+ln)
		}
	}

	composerH := 2
	avail := height - 2 - composerH
	if avail < 1 {
		avail = 1
	}
	// Keep the newest messages in view.
	if len(body) > avail {
		body = body[len(body)-avail:]
	}

	composer := styleMuted().Render("c: écrire un message")
	if t.composing {
		composer = renderInputLine(width, t.composer)
	}
	out := []string{header, ""}
	out = append(out, body...)
	for len(out) < height-composerH {
		out = append(out, "")
	}
	out = append(out, "", composer)
	return normalizePane(strings.Join(out, "\n"), width, height)
}
