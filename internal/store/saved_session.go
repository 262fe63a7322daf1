package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// SavedSession is the token kept between runs, and the backend it was issued by.
type SavedSession struct {
	Token   string
	APIURL  string
	SavedAt time.Time
}

func (d *DB) SaveSession(ctx context.Context, s SavedSession) error {
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("store: empty token")
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO saved_session(id, token, api_url, saved_at_unixms) VALUES(1, ?, ?, ?)`,
		s.Token, s.APIURL, s.SavedAt.UnixMilli())
	return err
}

// LoadSession returns the saved session; ok is false when none was saved.
func (d *DB) LoadSession(ctx context.Context) (SavedSession, bool, error) {
	var s SavedSession
	var ms int64
	err := d.db.QueryRowContext(ctx,
		`SELECT token, api_url, saved_at_unixms FROM saved_session WHERE id = 1`).Scan(&s.Token, &s.APIURL, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedSession{}, false, nil
	}
	if err != nil {
		return SavedSession{}, false, err
	}
	s.SavedAt = time.UnixMilli(ms)
	return s, true, nil
}

func (d *DB) ClearSession(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM saved_session`)
	return err
}
