// Package tui is the interactive terminal client: the sprint board with a task detail pane,
// and the per-project message threads.
package tui

import (
	"context"
	"errors"
	"log/slog"

	"sprintdesk/internal/session"
	"sprintdesk/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the TUI for an authenticated session and blocks until the user quits or ctx ends.
// The last board, view and selection are restored from db and saved again on exit.
func Run(ctx context.Context, s *session.Session, db *store.DB, logger *slog.Logger) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()

	st, err := db.LoadUIState(ctx)
	if err != nil {
		return err
	}
	m := newAppModel(ctx, s, db, logger, st)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
