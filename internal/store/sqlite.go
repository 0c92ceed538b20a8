package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store represents the SQLite session store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := checkSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginSession inserts sess with status active. An empty ID is replaced by
// a new UUID and a zero StartedAt by the current time.
func (s *Store) BeginSession(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	sess.Status = StatusActive

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, started_at, source_path, script_path, precision, step_size, layout, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAt.UnixNano(), sess.SourcePath, sess.ScriptPath,
		sess.Precision, sess.StepSize, sess.Layout, string(sess.Status),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FinishSession stores the final counters of sess and marks it complete,
// or failed when runErr is non-nil.
func (s *Store) FinishSession(sess *Session, runErr error) error {
	now := time.Now()
	sess.FinishedAt = &now
	sess.Status = StatusComplete
	sess.Error = ""
	if runErr != nil {
		sess.Status = StatusFailed
		sess.Error = runErr.Error()
	}

	result, err := s.db.Exec(`
		UPDATE sessions
		SET finished_at = ?, script_path = ?, status = ?, error = ?,
		    event_count = ?, line_count = ?, capture_count = ?
		WHERE id = ?`,
		now.UnixNano(), sess.ScriptPath, string(sess.Status), sess.Error,
		sess.EventCount, sess.LineCount, sess.CaptureCount, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session %s: %w", sess.ID, sql.ErrNoRows)
	}
	return nil
}

// GetSession retrieves a session by ID. It returns nil when none exists.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, source_path, script_path, precision, step_size,
		       layout, status, error, event_count, line_count, capture_count
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns up to limit sessions, newest first.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, source_path, script_path, precision, step_size,
		       layout, status, error, event_count, line_count, capture_count
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and everything recorded for it.
func (s *Store) DeleteSession(id string) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Prune deletes sessions started before cutoff and returns how many were
// removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM sessions WHERE started_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return n, nil
}

// InsertSamples stores the raw samples of a session.
func (s *Store) InsertSamples(sessionID string, samples []Sample) error {
	return s.batch("samples", `
		INSERT INTO samples (session_id, ordinal, time_ms, x, y)
		VALUES (?, ?, ?, ?, ?)`, len(samples), func(stmt *sql.Stmt, i int) error {
		smp := samples[i]
		_, err := stmt.Exec(sessionID, smp.Ordinal, smp.TimeMs, smp.X, smp.Y)
		return err
	})
}

// InsertCommands stores the script lines of a session in order.
func (s *Store) InsertCommands(sessionID string, lines []string) error {
	return s.batch("commands", `
		INSERT INTO commands (session_id, ordinal, line)
		VALUES (?, ?, ?)`, len(lines), func(stmt *sql.Stmt, i int) error {
		_, err := stmt.Exec(sessionID, i, lines[i])
		return err
	})
}

// InsertDiagnostics stores the skipped events of a session.
func (s *Store) InsertDiagnostics(sessionID string, diags []Diagnostic) error {
	return s.batch("diagnostics", `
		INSERT INTO diagnostics (session_id, time_ms, kind, reason)
		VALUES (?, ?, ?, ?)`, len(diags), func(stmt *sql.Stmt, i int) error {
		d := diags[i]
		_, err := stmt.Exec(sessionID, d.TimeMs, d.Kind, d.Reason)
		return err
	})
}

// InsertCapture stores one capture outcome and returns its ID.
func (s *Store) InsertCapture(sessionID string, c *Capture) (int64, error) {
	hover := 0
	if c.Hover {
		hover = 1
	}
	result, err := s.db.Exec(`
		INSERT INTO captures (session_id, seq, file_name, hover, x, y, width, height, fingerprint, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, c.Seq, c.FileName, hover, c.X, c.Y, c.Width, c.Height, c.Fingerprint, c.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("insert capture: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	c.ID = id
	return id, nil
}

// GetSamples returns the samples of a session in order.
func (s *Store) GetSamples(sessionID string) ([]Sample, error) {
	rows, err := s.db.Query(`
		SELECT ordinal, time_ms, x, y FROM samples
		WHERE session_id = ?
		ORDER BY ordinal ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var smp Sample
		if err := rows.Scan(&smp.Ordinal, &smp.TimeMs, &smp.X, &smp.Y); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// GetCommands returns the script lines of a session in order.
func (s *Store) GetCommands(sessionID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT line FROM commands
		WHERE session_id = ?
		ORDER BY ordinal ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return lines, nil
}

// GetCaptures returns the captures of a session in insertion order.
func (s *Store) GetCaptures(sessionID string) ([]Capture, error) {
	rows, err := s.db.Query(`
		SELECT id, seq, file_name, hover, x, y, width, height, fingerprint, error
		FROM captures
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	var captures []Capture
	for rows.Next() {
		var c Capture
		var hover int
		if err := rows.Scan(&c.ID, &c.Seq, &c.FileName, &hover, &c.X, &c.Y, &c.Width, &c.Height, &c.Fingerprint, &c.Error); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		c.Hover = hover != 0
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate captures: %w", err)
	}
	return captures, nil
}

// GetDiagnostics returns the diagnostics of a session.
func (s *Store) GetDiagnostics(sessionID string) ([]Diagnostic, error) {
	rows, err := s.db.Query(`
		SELECT time_ms, kind, reason FROM diagnostics
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.TimeMs, &d.Kind, &d.Reason); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

// batch runs n inserts of query in one transaction.
func (s *Store) batch(table, query string, n int, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var startedAt int64
	var finishedAt sql.NullInt64
	var status string
	err := row.Scan(&sess.ID, &startedAt, &finishedAt, &sess.SourcePath, &sess.ScriptPath,
		&sess.Precision, &sess.StepSize, &sess.Layout, &status, &sess.Error,
		&sess.EventCount, &sess.LineCount, &sess.CaptureCount)
	if err != nil {
		return nil, err
	}
	sess.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64)
		sess.FinishedAt = &t
	}
	sess.Status = Status(status)
	return &sess, nil
}
