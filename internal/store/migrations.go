package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSchema is returned by Open when the database lacks expected tables.
var ErrSchema = errors.New("unexpected database schema")

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
}

// migrations contains all database migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with sessions",
		Up:          migrationV1Up,
	},
	{
		Version:     2,
		Description: "Add samples and commands tables",
		Up:          migrationV2Up,
	},
	{
		Version:     3,
		Description: "Add captures and diagnostics tables",
		Up:          migrationV3Up,
	},
}

// Migration SQL statements

const migrationV1Up = `
-- Conversion sessions
CREATE TABLE IF NOT EXISTS sessions (
    id              TEXT PRIMARY KEY,
    started_at      INTEGER NOT NULL,
    finished_at     INTEGER,
    source_path     TEXT NOT NULL,
    script_path     TEXT NOT NULL DEFAULT '',
    precision       REAL NOT NULL,
    step_size       INTEGER NOT NULL,
    layout          TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'active',
    error           TEXT NOT NULL DEFAULT '',
    event_count     INTEGER NOT NULL DEFAULT 0,
    line_count      INTEGER NOT NULL DEFAULT 0,
    capture_count   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_source ON sessions(source_path);
`

const migrationV2Up = `
-- Raw pointer samples, one row per input event
CREATE TABLE IF NOT EXISTS samples (
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    ordinal     INTEGER NOT NULL,
    time_ms     INTEGER NOT NULL,
    x           INTEGER NOT NULL,
    y           INTEGER NOT NULL,
    PRIMARY KEY (session_id, ordinal)
);

-- Emitted script lines
CREATE TABLE IF NOT EXISTS commands (
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    ordinal     INTEGER NOT NULL,
    line        TEXT NOT NULL,
    PRIMARY KEY (session_id, ordinal)
);
`

const migrationV3Up = `
-- Region captures, including hover re-captures
CREATE TABLE IF NOT EXISTS captures (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL,
    file_name   TEXT NOT NULL,
    hover       INTEGER NOT NULL DEFAULT 0,
    x           INTEGER NOT NULL,
    y           INTEGER NOT NULL,
    width       INTEGER NOT NULL,
    height      INTEGER NOT NULL,
    fingerprint TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_captures_session ON captures(session_id, seq);

-- Skipped events
CREATE TABLE IF NOT EXISTS diagnostics (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    time_ms     INTEGER NOT NULL,
    kind        TEXT NOT NULL,
    reason      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_session ON diagnostics(session_id);
`

// MigrateDB applies all pending migrations to the database.
func MigrateDB(db *sql.DB) error {
	// Ensure migrations table exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		// Apply migration
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		// Record migration
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// requiredTables must exist once every migration has been applied.
var requiredTables = []string{
	"captures", "commands", "diagnostics", "samples", "schema_migrations", "sessions",
}

// checkSchema reports every required table that is missing.
func checkSchema(db *sql.DB) error {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	var missing []string
	for _, t := range requiredTables {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing tables %s", ErrSchema, strings.Join(missing, ", "))
	}
	return nil
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// SchemaStatus describes the database schema version.
type SchemaStatus struct {
	Version int
	Latest  int
	Applied []AppliedMigration
}

// Current reports whether every known migration has been applied.
func (s SchemaStatus) Current() bool { return s.Version >= s.Latest }

// SchemaStatus lists the migrations applied to the database.
func (s *Store) SchemaStatus() (*SchemaStatus, error) {
	st := &SchemaStatus{Latest: migrations[len(migrations)-1].Version}

	rows, err := s.db.Query("SELECT version, applied_at, COALESCE(description, '') FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			am AppliedMigration
			ns int64
		)
		if err := rows.Scan(&am.Version, &ns, &am.Description); err != nil {
			return nil, fmt.Errorf("read schema_migrations: %w", err)
		}
		am.AppliedAt = time.Unix(0, ns)
		st.Applied = append(st.Applied, am)
		st.Version = max(st.Version, am.Version)
	}
	return st, rows.Err()
}
