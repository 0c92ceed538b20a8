package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := checkSchema(s.db); err != nil {
		t.Errorf("checkSchema: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sess := &Session{SourcePath: "/tmp/eventrecord.txt", Precision: 6, StepSize: 15, Layout: "US"}
	if err := s.BeginSession(sess); err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	s.Close()

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, err := s.GetSession(sess.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSession after reopen: %v, %v", got, err)
	}
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	sess := &Session{SourcePath: "/tmp/eventrecord.txt", Precision: 6, StepSize: 15, Layout: "US"}
	if err := s.BeginSession(sess); err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	if len(sess.ID) != 36 {
		t.Errorf("expected a UUID session id, got %q", sess.ID)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetSession returned nil")
	}
	if got.Status != StatusActive || got.FinishedAt != nil {
		t.Errorf("new session should be active and unfinished: %+v", got)
	}

	sess.ScriptPath = "/tmp/test.sikuli/test.py"
	sess.EventCount = 42
	sess.LineCount = 7
	sess.CaptureCount = 1
	if err := s.FinishSession(sess, nil); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}

	got, err = s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != StatusComplete {
		t.Errorf("Status = %s, want complete", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if got.ScriptPath != sess.ScriptPath || got.EventCount != 42 || got.LineCount != 7 || got.CaptureCount != 1 {
		t.Errorf("counters not stored: %+v", got)
	}
	if got.Precision != 6 || got.StepSize != 15 || got.Layout != "US" {
		t.Errorf("settings not stored: %+v", got)
	}
}

func TestFinishSessionFailed(t *testing.T) {
	s := openTestStore(t)
	sess := &Session{SourcePath: "events.json", Layout: "US"}
	if err := s.BeginSession(sess); err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	if err := s.FinishSession(sess, errors.New("context canceled")); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	got, _ := s.GetSession(sess.ID)
	if got.Status != StatusFailed || got.Error != "context canceled" {
		t.Errorf("got %s %q, want failed with error", got.Status, got.Error)
	}
}

func TestFinishUnknownSession(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishSession(&Session{ID: "missing"}, nil)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetSession("nope")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSessionRecords(t *testing.T) {
	s := openTestStore(t)
	sess := &Session{SourcePath: "events.txt", Layout: "US"}
	if err := s.BeginSession(sess); err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	samples := []Sample{{0, 100, 1, 2}, {1, 110, 3, 4}, {2, 120, -5, 6}}
	if err := s.InsertSamples(sess.ID, samples); err != nil {
		t.Fatalf("InsertSamples failed: %v", err)
	}
	lines := []string{`# wait("1.png")`, "hover(Location(30, 20))"}
	if err := s.InsertCommands(sess.ID, lines); err != nil {
		t.Fatalf("InsertCommands failed: %v", err)
	}
	diags := []Diagnostic{{TimeMs: 5, Kind: "button_press", Reason: "unknown button 9"}}
	if err := s.InsertDiagnostics(sess.ID, diags); err != nil {
		t.Fatalf("InsertDiagnostics failed: %v", err)
	}
	c := &Capture{Seq: 1, FileName: "1.png", X: 10, Y: 10, Width: 40, Height: 30, Fingerprint: "ab"}
	if _, err := s.InsertCapture(sess.ID, c); err != nil {
		t.Fatalf("InsertCapture failed: %v", err)
	}
	hover := &Capture{Seq: 1, FileName: "1.png", Hover: true, X: 10, Y: 10, Width: 40, Height: 30, Error: "no display"}
	if _, err := s.InsertCapture(sess.ID, hover); err != nil {
		t.Fatalf("InsertCapture failed: %v", err)
	}
	if c.ID == 0 || hover.ID <= c.ID {
		t.Errorf("capture ids not assigned in order: %d, %d", c.ID, hover.ID)
	}

	gotSamples, err := s.GetSamples(sess.ID)
	if err != nil {
		t.Fatalf("GetSamples failed: %v", err)
	}
	if len(gotSamples) != 3 || gotSamples[2] != samples[2] {
		t.Errorf("samples = %+v", gotSamples)
	}

	gotLines, err := s.GetCommands(sess.ID)
	if err != nil {
		t.Fatalf("GetCommands failed: %v", err)
	}
	if len(gotLines) != 2 || gotLines[0] != lines[0] || gotLines[1] != lines[1] {
		t.Errorf("commands = %q", gotLines)
	}

	gotDiags, err := s.GetDiagnostics(sess.ID)
	if err != nil {
		t.Fatalf("GetDiagnostics failed: %v", err)
	}
	if len(gotDiags) != 1 || gotDiags[0] != diags[0] {
		t.Errorf("diagnostics = %+v", gotDiags)
	}

	gotCaptures, err := s.GetCaptures(sess.ID)
	if err != nil {
		t.Fatalf("GetCaptures failed: %v", err)
	}
	if len(gotCaptures) != 2 {
		t.Fatalf("captures = %+v", gotCaptures)
	}
	if gotCaptures[0] != *c || gotCaptures[1] != *hover {
		t.Errorf("captures mismatch: %+v", gotCaptures)
	}
}

func TestInsertForUnknownSessionFails(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertCommands("missing", []string{"wait(1.000000)"}); err == nil {
		t.Error("expected foreign key violation")
	}
	if err := s.InsertCommands("missing", nil); err != nil {
		t.Errorf("empty batch should be a no-op: %v", err)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sess := &Session{SourcePath: "events.txt", Layout: "US", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.BeginSession(sess); err != nil {
			t.Fatalf("BeginSession failed: %v", err)
		}
	}

	list, err := s.ListSessions(2)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if !list[0].StartedAt.After(list[1].StartedAt) {
		t.Errorf("sessions not newest first: %v, %v", list[0].StartedAt, list[1].StartedAt)
	}
}

func TestDeleteAndPruneCascade(t *testing.T) {
	s := openTestStore(t)
	old := &Session{SourcePath: "old.txt", Layout: "US", StartedAt: time.Now().Add(-48 * time.Hour)}
	recent := &Session{SourcePath: "new.txt", Layout: "US"}
	for _, sess := range []*Session{old, recent} {
		if err := s.BeginSession(sess); err != nil {
			t.Fatalf("BeginSession failed: %v", err)
		}
		if err := s.InsertCommands(sess.ID, []string{"type(\"a\")"}); err != nil {
			t.Fatalf("InsertCommands failed: %v", err)
		}
	}

	n, err := s.Prune(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d sessions, want 1", n)
	}
	lines, _ := s.GetCommands(old.ID)
	if len(lines) != 0 {
		t.Errorf("commands of pruned session survived: %q", lines)
	}

	if err := s.DeleteSession(recent.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if got, _ := s.GetSession(recent.ID); got != nil {
		t.Error("session survived delete")
	}
}

func TestSchemaStatus(t *testing.T) {
	s := openTestStore(t)

	st, err := s.SchemaStatus()
	if err != nil {
		t.Fatalf("SchemaStatus failed: %v", err)
	}
	if !st.Current() || st.Version != 3 || len(st.Applied) != 3 {
		t.Errorf("expected fully migrated db: %+v", st)
	}
	if st.Applied[0].Version != 1 || st.Applied[0].AppliedAt.IsZero() {
		t.Errorf("first migration = %+v", st.Applied[0])
	}
}

func TestOpenRejectsDamagedSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.db.Exec("DROP TABLE captures"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	s.Close()

	_, err = Open(dbPath)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("Open error = %v, want ErrSchema", err)
	}
	if !strings.Contains(err.Error(), "captures") {
		t.Errorf("error should name the missing table: %v", err)
	}
}
