package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

const uiStateKey = "tui"

// UIState restores the last screen on relaunch. Callers should tolerate missing data.
type UIState struct {
	Version int `json:"version"`

	ProjectID string `json:"projectId,omitempty"`
	SprintID  string `json:"sprintId,omitempty"`

	// View is one of: board|messages
	View string `json:"view,omitempty"`

	// SelectedTaskID is the focused card on the board view.
	SelectedTaskID string `json:"selectedTaskId,omitempty"`

	ShowDetail bool `json:"showDetail,omitempty"`
}

func (d *DB) LoadUIState(ctx context.Context) (UIState, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, `SELECT v FROM ui_state WHERE k = ?`, uiStateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return UIState{Version: 1}, nil
	}
	if err != nil {
		return UIState{}, err
	}
	var st UIState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// Corrupt rows are treated as missing.
		return UIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return st, nil
}

func (d *DB) SaveUIState(ctx context.Context, st UIState) error {
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `INSERT OR REPLACE INTO ui_state(k, v) VALUES(?, ?)`, uiStateKey, string(b))
	return err
}
