package truststate

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store and Journal using modernc.org/sqlite (pure
// Go, no CGO). Besides the single trust record it keeps an append-only
// journal of completed self-test runs for validation evidence.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trust_record (
		id                INTEGER PRIMARY KEY CHECK (id = 1),
		module_digest     TEXT NOT NULL DEFAULT '',
		install_digest    TEXT NOT NULL DEFAULT '',
		install_completed INTEGER NOT NULL DEFAULT 0,
		module_version    TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS selftest_runs (
		id          TEXT PRIMARY KEY,
		run_trigger TEXT NOT NULL,
		state       TEXT NOT NULL,
		passed      INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		started_at  TEXT NOT NULL,
		duration    TEXT NOT NULL DEFAULT '',
		report      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON selftest_runs(started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the trust record, or ErrNoRecord when none was saved.
func (s *SQLiteStore) Load() (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT module_digest, install_digest, install_completed, module_version, created_at, updated_at
		 FROM trust_record WHERE id = 1`)

	var rec Record
	var completed int
	var createdAt, updatedAt string
	err := row.Scan(&rec.ModuleDigest, &rec.InstallDigest, &completed, &rec.ModuleVersion, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("load trust record: %w", err)
	}
	rec.InstallCompleted = completed != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// Save writes the trust record, replacing any previous one.
func (s *SQLiteStore) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := 0
	if rec.InstallCompleted {
		completed = 1
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO trust_record (id, module_digest, install_digest, install_completed, module_version, created_at, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)`,
		rec.ModuleDigest, rec.InstallDigest, completed, rec.ModuleVersion,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save trust record: %w", err)
	}
	return nil
}

// AppendRun records one completed self-test run in the journal.
func (s *SQLiteStore) AppendRun(e RunEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO selftest_runs (id, run_trigger, state, passed, failed, started_at, duration, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Trigger, e.State, e.Passed, e.Failed,
		e.StartedAt.UTC().Format(time.RFC3339), e.Duration, e.Report,
	)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// Runs returns the most recent journal entries, newest first. A limit of
// zero or less returns every entry.
func (s *SQLiteStore) Runs(limit int) ([]RunEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, run_trigger, state, passed, failed, started_at, duration, report
	          FROM selftest_runs ORDER BY started_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var startedAt string
		if err := rows.Scan(&e.ID, &e.Trigger, &e.State, &e.Passed, &e.Failed, &startedAt, &e.Duration, &e.Report); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
