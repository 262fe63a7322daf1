package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "state.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSavedSession_RoundTripAndClear(t *testing.T) {
	t.Parallel()

	db := openTemp(t)
	ctx := context.Background()

	if _, ok, err := db.LoadSession(ctx); err != nil || ok {
		t.Fatalf("expected no saved session; ok=%v err=%v", ok, err)
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := db.SaveSession(ctx, SavedSession{Token: "a.b.c", APIURL: "http://x/api", SavedAt: at}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveSession(ctx, SavedSession{Token: "d.e.f", APIURL: "http://y/api", SavedAt: at}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := db.LoadSession(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Token != "d.e.f" || got.APIURL != "http://y/api" || !got.SavedAt.Equal(at) {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := db.ClearSession(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := db.LoadSession(ctx); ok {
		t.Fatalf("expected session cleared")
	}
	if err := db.SaveSession(ctx, SavedSession{Token: "  "}); err == nil {
		t.Fatalf("expected empty token rejected")
	}
}

func TestUIState_DefaultsAndRoundTrip(t *testing.T) {
	t.Parallel()

	db := openTemp(t)
	ctx := context.Background()

	st, err := db.LoadUIState(ctx)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if st.Version != 1 || st.ProjectID != "" {
		t.Fatalf("unexpected default state: %+v", st)
	}

	want := UIState{ProjectID: "7", SprintID: "9", View: "board", SelectedTaskID: "42", ShowDetail: true}
	if err := db.SaveUIState(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.LoadUIState(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want.Version = 1
	if got != want {
		t.Fatalf("expected %+v; got %+v", want, got)
	}
}

func TestDeviceID_StableAcrossOpens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.sqlite")
	ctx := context.Background()

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first, err := db.DeviceID(ctx)
	if err != nil || first == "" {
		t.Fatalf("device id: %q %v", first, err)
	}
	_ = db.Close()

	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	second, _ := db.DeviceID(ctx)
	if second != first {
		t.Fatalf("expected stable device id; got %q then %q", first, second)
	}
}
