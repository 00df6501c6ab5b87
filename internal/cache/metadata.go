package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mschirtzinger/practicesync/internal/model"
)

// LastUpdated returns when the collection identified by key was last saved.
func (s *Store) LastUpdated(ctx context.Context, key string) (time.Time, bool) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT last_updated FROM cache_metadata WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false
	}
	if err != nil {
		s.logErr(&Error{Op: "read metadata " + key, Err: err})
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Status summarizes what the cache currently holds.
type Status struct {
	Path         string
	LibraryItems int
	Sessions     int
	Logs         int
	Metadata     []model.CacheMetadata
}

// Updated returns the metadata timestamp for key.
func (st Status) Updated(key string) (time.Time, bool) {
	for _, m := range st.Metadata {
		if m.Key == key {
			return m.LastUpdated, true
		}
	}
	return time.Time{}, false
}

// Status reports row counts and collection timestamps.
func (s *Store) Status(ctx context.Context) (Status, error) {
	st := Status{Path: s.path}

	counts := []struct {
		table string
		dst   *int
	}{
		{"library_items", &st.LibraryItems},
		{"practice_sessions", &st.Sessions},
		{"practice_logs", &st.Logs},
	}
	for _, c := range counts {
		if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return Status{}, &Error{Op: "count " + c.table, Err: err}
		}
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT key, last_updated FROM cache_metadata ORDER BY key`)
	if err != nil {
		return Status{}, &Error{Op: "list metadata", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var m model.CacheMetadata
		var raw string
		if err := rows.Scan(&m.Key, &raw); err != nil {
			return Status{}, &Error{Op: "scan metadata", Err: err}
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			m.LastUpdated = t
		}
		st.Metadata = append(st.Metadata, m)
	}
	if err := rows.Err(); err != nil {
		return Status{}, &Error{Op: "list metadata", Err: err}
	}
	return st, nil
}
