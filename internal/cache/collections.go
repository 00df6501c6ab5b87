package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mschirtzinger/practicesync/internal/model"
)

// LoadLibraryItems returns every cached library item, or an empty slice if
// the cache cannot be read.
func (s *Store) LoadLibraryItems(ctx context.Context) []model.LibraryItem {
	items, err := s.loadLibraryItems(ctx)
	if err != nil {
		s.logErr(err)
		return []model.LibraryItem{}
	}
	return items
}

func (s *Store) loadLibraryItems(ctx context.Context) ([]model.LibraryItem, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, type, artist, tags, last_practiced, times_practiced
		FROM library_items
		ORDER BY name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, &Error{Op: "load library", Err: err}
	}
	defer rows.Close()

	items := []model.LibraryItem{}
	for rows.Next() {
		var item model.LibraryItem
		var typ, tagsJSON string
		var artist, lastPracticed sql.NullString

		if err := rows.Scan(&item.ID, &item.Name, &typ, &artist, &tagsJSON, &lastPracticed, &item.TimesPracticed); err != nil {
			return nil, &Error{Op: "scan library item", Err: err}
		}

		item.Type = model.ItemType(typ)
		item.Artist = nullStringPtr(artist)
		item.LastPracticed = nullStringToTime(lastPracticed)
		if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil || item.Tags == nil {
			item.Tags = []string{}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "load library", Err: err}
	}
	return items, nil
}

// SaveLibraryItems replaces the cached library with items: rows are upserted
// by id and rows absent from items are deleted.
func (s *Store) SaveLibraryItems(ctx context.Context, items []model.LibraryItem) {
	s.logErr(s.saveLibraryItems(ctx, items))
}

func (s *Store) saveLibraryItems(ctx context.Context, items []model.LibraryItem) error {
	return s.reconcile(ctx, "save library", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO library_items (id, name, type, artist, tags, last_practiced, times_practiced)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				type = excluded.type,
				artist = excluded.artist,
				tags = excluded.tags,
				last_practiced = excluded.last_practiced,
				times_practiced = excluded.times_practiced
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		keep := make(map[string]struct{}, len(items))
		for _, item := range items {
			tags := item.Tags
			if tags == nil {
				tags = []string{}
			}
			tagsJSON, err := json.Marshal(tags)
			if err != nil {
				return fmt.Errorf("failed to marshal tags for %s: %w", item.ID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				item.ID,
				item.Name,
				string(item.Type),
				stringPtrToNull(item.Artist),
				string(tagsJSON),
				timeToNullString(item.LastPracticed),
				item.TimesPracticed,
			); err != nil {
				return fmt.Errorf("failed to upsert library item %s: %w", item.ID, err)
			}
			keep[item.ID] = struct{}{}
		}

		if err := pruneMissing(ctx, tx, "library_items", "", nil, keep); err != nil {
			return err
		}
		return touchMetadata(ctx, tx, model.MetadataLibrary)
	})
}

// LoadSessions returns every cached session, newest first.
func (s *Store) LoadSessions(ctx context.Context) []model.PracticeSession {
	sessions, err := s.loadSessions(ctx)
	if err != nil {
		s.logErr(err)
		return []model.PracticeSession{}
	}
	return sessions
}

func (s *Store) loadSessions(ctx context.Context) ([]model.PracticeSession, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, date, goal_minutes
		FROM practice_sessions
		ORDER BY date DESC, id
	`)
	if err != nil {
		return nil, &Error{Op: "load sessions", Err: err}
	}
	defer rows.Close()

	sessions := []model.PracticeSession{}
	for rows.Next() {
		var sess model.PracticeSession
		var date string
		if err := rows.Scan(&sess.ID, &sess.Name, &date, &sess.GoalMinutes); err != nil {
			return nil, &Error{Op: "scan session", Err: err}
		}
		if t, err := time.Parse(time.RFC3339, date); err == nil {
			sess.Date = t
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "load sessions", Err: err}
	}
	return sessions, nil
}

// SaveSessions replaces the cached sessions with sessions.
func (s *Store) SaveSessions(ctx context.Context, sessions []model.PracticeSession) {
	s.logErr(s.saveSessions(ctx, sessions))
}

func (s *Store) saveSessions(ctx context.Context, sessions []model.PracticeSession) error {
	return s.reconcile(ctx, "save sessions", func(tx *sql.Tx) error {
		keep := make(map[string]struct{}, len(sessions))
		for _, sess := range sessions {
			if err := upsertSession(ctx, tx, sess); err != nil {
				return err
			}
			keep[sess.ID] = struct{}{}
		}

		if err := pruneMissing(ctx, tx, "practice_sessions", "", nil, keep); err != nil {
			return err
		}
		return touchMetadata(ctx, tx, model.MetadataSessions)
	})
}

// UpsertSession inserts or replaces one session without pruning the others.
func (s *Store) UpsertSession(ctx context.Context, sess model.PracticeSession) {
	s.logErr(s.reconcile(ctx, "upsert session", func(tx *sql.Tx) error {
		return upsertSession(ctx, tx, sess)
	}))
}

func upsertSession(ctx context.Context, tx *sql.Tx, sess model.PracticeSession) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO practice_sessions (id, name, date, goal_minutes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			date = excluded.date,
			goal_minutes = excluded.goal_minutes
	`, sess.ID, sess.Name, sess.Date.Format(time.RFC3339), sess.GoalMinutes)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", sess.ID, err)
	}
	return nil
}

// LoadLogs returns the cached logs of one session in order.
func (s *Store) LoadLogs(ctx context.Context, sessionID string) []model.PracticeLog {
	logs, err := s.loadLogs(ctx, "WHERE session_id = ?", sessionID)
	if err != nil {
		s.logErr(err)
		return []model.PracticeLog{}
	}
	return logs
}

// LoadAllLogs returns every cached log.
func (s *Store) LoadAllLogs(ctx context.Context) []model.PracticeLog {
	logs, err := s.loadLogs(ctx, "")
	if err != nil {
		s.logErr(err)
		return []model.PracticeLog{}
	}
	return logs
}

func (s *Store) loadLogs(ctx context.Context, where string, args ...any) ([]model.PracticeLog, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, item_id, session_id, planned_minutes, actual_minutes, sort_order, notes
		FROM practice_logs
		`+where+`
		ORDER BY session_id, sort_order, id
	`, args...)
	if err != nil {
		return nil, &Error{Op: "load logs", Err: err}
	}
	defer rows.Close()

	logs := []model.PracticeLog{}
	for rows.Next() {
		var l model.PracticeLog
		var actual sql.NullFloat64
		var notes sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &l.ItemID, &l.SessionID, &l.PlannedMinutes, &actual, &l.Order, &notes); err != nil {
			return nil, &Error{Op: "scan log", Err: err}
		}
		if actual.Valid {
			v := actual.Float64
			l.ActualMinutes = &v
		}
		l.Notes = nullStringPtr(notes)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "load logs", Err: err}
	}
	return logs, nil
}

// SaveLogs replaces the cached logs of sessionID with logs. Rows belonging to
// other sessions are untouched.
func (s *Store) SaveLogs(ctx context.Context, sessionID string, logs []model.PracticeLog) {
	s.logErr(s.saveLogs(ctx, sessionID, logs))
}

func (s *Store) saveLogs(ctx context.Context, sessionID string, logs []model.PracticeLog) error {
	return s.reconcile(ctx, "save logs", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO practice_logs (id, name, item_id, session_id, planned_minutes, actual_minutes, sort_order, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				item_id = excluded.item_id,
				session_id = excluded.session_id,
				planned_minutes = excluded.planned_minutes,
				actual_minutes = excluded.actual_minutes,
				sort_order = excluded.sort_order,
				notes = excluded.notes
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		keep := make(map[string]struct{}, len(logs))
		for _, l := range logs {
			if _, err := stmt.ExecContext(ctx,
				l.ID,
				l.Name,
				l.ItemID,
				sessionID,
				l.PlannedMinutes,
				floatPtrToNull(l.ActualMinutes),
				l.Order,
				stringPtrToNull(l.Notes),
			); err != nil {
				return fmt.Errorf("failed to upsert log %s: %w", l.ID, err)
			}
			keep[l.ID] = struct{}{}
		}

		if err := pruneMissing(ctx, tx, "practice_logs", "WHERE session_id = ?", []any{sessionID}, keep); err != nil {
			return err
		}
		return touchMetadata(ctx, tx, model.MetadataLogs(sessionID))
	})
}

// UpdateLog patches one cached log's planned time, actual time, order and
// notes. A log that is not cached is ignored.
func (s *Store) UpdateLog(ctx context.Context, l model.PracticeLog) {
	s.logErr(s.updateLog(ctx, l))
}

func (s *Store) updateLog(ctx context.Context, l model.PracticeLog) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		UPDATE practice_logs
		SET planned_minutes = ?, actual_minutes = ?, sort_order = ?, notes = ?
		WHERE id = ?
	`, l.PlannedMinutes, floatPtrToNull(l.ActualMinutes), l.Order, stringPtrToNull(l.Notes), l.ID)
	if err != nil {
		return &Error{Op: "update log " + l.ID, Err: err}
	}
	return nil
}

// reconcile runs fn in one transaction under the writer lock.
func (s *Store) reconcile(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return &Error{Op: op, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}

// pruneMissing deletes rows of table (optionally scoped by where) whose id is
// not in keep.
func pruneMissing(ctx context.Context, tx *sql.Tx, table, where string, args []any, keep map[string]struct{}) error {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM "+table+" "+where, args...)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", table, err)
	}

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating %s: %w", table, err)
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to prune %s %s: %w", table, id, err)
		}
	}
	return nil
}

func touchMetadata(ctx context.Context, tx *sql.Tx, key string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cache_metadata (key, last_updated) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET last_updated = excluded.last_updated
	`, key, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to update metadata %s: %w", key, err)
	}
	return nil
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func stringPtrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func floatPtrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
