// Package store manages the SQLite database holding calendar accounts,
// events, and tasks.
//
// Only this package may open or query the database. All other packages
// receive a [*Store] and call its methods. Mirror-event writes go through
// [Store.UpsertMirrorEvent], whose single-statement upsert (backed by the
// unique index on (external_id, calendar_account_id)) is what keeps two
// overlapping reconciliations of the same account from producing duplicate
// rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS calendar_accounts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id        INTEGER NOT NULL,
    provider       TEXT    NOT NULL,
    email          TEXT    NOT NULL,
    access_token   TEXT    NOT NULL DEFAULT '',
    refresh_token  TEXT    NOT NULL DEFAULT '',
    token_expiry   TEXT    NOT NULL DEFAULT '',
    calendar_id    TEXT    NOT NULL DEFAULT 'primary',
    enabled        INTEGER NOT NULL DEFAULT 1,
    last_synced_at TEXT    NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_account_identity
    ON calendar_accounts (user_id, provider, email);

CREATE TABLE IF NOT EXISTS events (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id             INTEGER NOT NULL,
    project_id          INTEGER,
    task_id             INTEGER,
    title               TEXT    NOT NULL,
    description         TEXT    NOT NULL DEFAULT '',
    starts_at           TEXT    NOT NULL,
    ends_at             TEXT    NOT NULL,
    all_day             INTEGER NOT NULL DEFAULT 0,
    source              TEXT    NOT NULL DEFAULT 'local',
    external_id         TEXT    NOT NULL DEFAULT '',
    calendar_account_id INTEGER REFERENCES calendar_accounts(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_event_external
    ON events (external_id, calendar_account_id) WHERE external_id != '';
CREATE INDEX IF NOT EXISTS idx_event_account ON events (calendar_account_id);

CREATE TABLE IF NOT EXISTS tasks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     INTEGER NOT NULL,
    project_id  INTEGER,
    title       TEXT    NOT NULL,
    description TEXT    NOT NULL DEFAULT '',
    priority    TEXT    NOT NULL DEFAULT 'medium',
    status      TEXT    NOT NULL DEFAULT 'pending',
    due_date    TEXT    NOT NULL DEFAULT '',
    event_id    INTEGER REFERENCES events(id) ON DELETE SET NULL
);
`

// Store is the SQLite-backed repository for accounts, events, and tasks.
type Store struct {
	db *sql.DB
}

// dbtx is the query surface shared by *sql.DB and *sql.Tx, so the same
// statement helpers serve both [Store] methods and [Tx] methods.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DefaultDBPath returns the default path for the database:
// ~/.local/share/decksync/deck.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "decksync", "deck.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Tx exposes the event and task operations that may run inside a
// transaction. Obtained via [Store.InTx].
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn against a single transaction, committing on success and
// rolling back on error or panic. The task–event linkage must run through
// here so a task mutation and its mirror-event write land atomically.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	done = true
	return nil
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so the scan helpers can be
// reused across single-row and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil
	}
	return &t
}
