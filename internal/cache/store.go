// Package cache provides the local SQLite mirror of the remote practice
// collections.
//
// The cache is a best-effort acceleration layer, never a source of truth.
// Reads return an empty collection on storage failure and writes log their
// errors instead of returning them; callers keep their in-memory state
// authoritative for the running session.
//
// Architecture:
//   - Database file: ~/.cache/practicesync/cache.db (configurable)
//   - WAL mode: concurrent readers during writes
//   - Tables: library_items, practice_sessions, practice_logs, cache_metadata
//   - Writes: serialized through a single writer lock, one transaction each
//
// Saving a collection is a set reconciliation: every incoming row is
// upserted by id and every cached row missing from the incoming set is
// deleted. Logs are reconciled per session.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
	closed atomic.Bool

	// writeMu serializes every mutating operation so a prune can never
	// interleave with a concurrent upsert.
	writeMu sync.Mutex
}

// Open creates or opens the cache database at path and initializes its schema.
// A nil logger writes to stderr.
//
// The caller MUST call Close() when done.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path, logger: logger}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection. Later calls are
// no-ops, and the fail-soft operations keep working against a closed store
// by logging and returning empty results.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	return nil
}

// Clear deletes every cached row and metadata entry.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: "clear", Err: err}
	}
	defer tx.Rollback()

	for _, table := range []string{"library_items", "practice_sessions", "practice_logs", "cache_metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return &Error{Op: "clear " + table, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &Error{Op: "clear", Err: err}
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS library_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		artist TEXT,
		tags TEXT NOT NULL DEFAULT '[]',  -- JSON array
		last_practiced TEXT,
		times_practiced INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS practice_sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		goal_minutes INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS practice_logs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		item_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		planned_minutes INTEGER NOT NULL,
		actual_minutes REAL,
		sort_order INTEGER NOT NULL,
		notes TEXT
	);

	CREATE TABLE IF NOT EXISTS cache_metadata (
		key TEXT PRIMARY KEY,
		last_updated TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_session ON practice_logs(session_id, sort_order);
	CREATE INDEX IF NOT EXISTS idx_sessions_date ON practice_sessions(date);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return nil
}

// logErr records a swallowed cache error.
func (s *Store) logErr(err error) {
	if err != nil {
		s.logger.Printf("%v", err)
	}
}
