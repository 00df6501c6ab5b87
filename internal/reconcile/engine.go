package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/remote"
)

// Engine orchestrates pulls and pushes between a Remote and a Cache.
type Engine struct {
	remote Remote
	cache  Cache
	logger *log.Logger
}

// New creates an Engine. If logger is nil, a default logger writing to
// stderr is used.
func New(r Remote, c Cache, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return &Engine{remote: r, cache: c, logger: logger}
}

// PullLibrary refreshes the library view. It returns an error only when the
// fetch failed and the view had nothing to show.
func (e *Engine) PullLibrary(ctx context.Context, view View[[]model.LibraryItem]) error {
	return pull(ctx, e, "library", view,
		e.cache.LoadLibraryItems,
		e.remote.FetchLibrary,
		e.cache.SaveLibraryItems,
	)
}

// PullSessions refreshes the sessions view.
func (e *Engine) PullSessions(ctx context.Context, view View[[]model.PracticeSession]) error {
	return pull(ctx, e, "sessions", view,
		e.cache.LoadSessions,
		e.remote.FetchSessions,
		e.cache.SaveSessions,
	)
}

// PullLogs refreshes the logs view of one session.
func (e *Engine) PullLogs(ctx context.Context, sessionID string, view View[[]model.PracticeLog]) error {
	return pull(ctx, e, "logs for "+sessionID, view,
		func(ctx context.Context) []model.PracticeLog {
			return e.cache.LoadLogs(ctx, sessionID)
		},
		func(ctx context.Context) ([]model.PracticeLog, error) {
			return e.remote.FetchLogs(ctx, sessionID)
		},
		func(ctx context.Context, logs []model.PracticeLog) {
			e.cache.SaveLogs(ctx, sessionID, logs)
		},
	)
}

func pull[T any](
	ctx context.Context,
	e *Engine,
	name string,
	view View[[]T],
	load func(context.Context) []T,
	fetch func(context.Context) ([]T, error),
	save func(context.Context, []T),
) error {
	current := view.Current()
	showing := current.IsLoaded() && len(current.Value) > 0

	if cached := load(ctx); len(cached) > 0 {
		view.Set(model.Loaded(cached))
		showing = true
	} else if !showing {
		view.Set(model.InProgress[[]T]())
	}

	fresh, err := fetch(ctx)
	if err != nil {
		if showing {
			e.logger.Printf("refresh %s failed, keeping cached data: %v", name, err)
			return nil
		}
		view.Set(model.Failed[[]T](err))
		return err
	}

	if fresh == nil {
		fresh = []T{}
	}
	view.Set(model.Loaded(fresh))
	save(ctx, fresh)
	return nil
}

// SaveResult counts the remote calls made by a save.
type SaveResult struct {
	Archived int
	Created  int
	Updated  int
	Skipped  int
}

// Save pushes the selection of sessionID to the remote.
//
// Logs in deleted are archived first; the first failure aborts and deleted
// is cleared only when every archive succeeded. Then items are walked in
// index order: unsynced items are created, dirty items are updated, clean
// items are skipped. Each item's order is its index. The first failure
// aborts; items already processed keep their new LogID and clean state.
//
// items is modified in place. After a fully successful save the session's
// logs are written to the cache.
func (e *Engine) Save(ctx context.Context, sessionID string, items []model.SelectedItem, deleted *model.IDSet) (SaveResult, error) {
	var res SaveResult

	if deleted != nil {
		for _, id := range deleted.IDs() {
			if err := e.remote.DeleteLog(ctx, id); err != nil {
				return res, fmt.Errorf("save aborted while archiving: %w", err)
			}
			res.Archived++
		}
		deleted.Clear()
	}

	for i := range items {
		item := &items[i]

		switch {
		case !item.IsPersisted():
			id, err := e.remote.CreateLog(ctx, remote.LogCreate{
				Name:           item.Item.Name,
				ItemID:         item.Item.ID,
				SessionID:      sessionID,
				PlannedMinutes: item.PlannedMinutes,
				Order:          i,
				ActualMinutes:  item.ActualMinutes,
				Notes:          item.Notes,
			})
			if err != nil {
				return res, fmt.Errorf("save aborted at item %d (%s): %w", i, item.Item.Name, err)
			}
			item.LogID = &id
			item.IsDirty = false
			res.Created++

		case item.IsDirty:
			if err := e.remote.UpdateLog(ctx, *item.LogID, fullPatch(item, i)); err != nil {
				return res, fmt.Errorf("save aborted at item %d (%s): %w", i, item.Item.Name, err)
			}
			item.IsDirty = false
			res.Updated++

		default:
			res.Skipped++
		}
	}

	logs := make([]model.PracticeLog, 0, len(items))
	for i := range items {
		logs = append(logs, items[i].ToLog(sessionID, i))
	}
	e.cache.SaveLogs(ctx, sessionID, logs)

	e.logger.Printf("saved session %s: %d archived, %d created, %d updated, %d unchanged",
		sessionID, res.Archived, res.Created, res.Updated, res.Skipped)
	return res, nil
}

// RecordPractice writes one item's practice result to the remote and then
// patches the cached row. Items without a LogID are skipped and reported
// as not written.
func (e *Engine) RecordPractice(ctx context.Context, sessionID string, item *model.SelectedItem, order int) (bool, error) {
	if !item.IsPersisted() {
		return false, nil
	}

	if err := e.remote.UpdateLog(ctx, *item.LogID, fullPatch(item, order)); err != nil {
		return false, fmt.Errorf("record practice for %s: %w", item.Item.Name, err)
	}
	item.IsDirty = false

	e.cache.UpdateLog(ctx, item.ToLog(sessionID, order))
	return true, nil
}

// CreateSession creates a session dated day and caches it.
func (e *Engine) CreateSession(ctx context.Context, name string, day time.Time, goalMinutes int) (model.PracticeSession, error) {
	session, err := e.remote.CreateSession(ctx, name, model.DayKey(day), goalMinutes)
	if err != nil {
		return model.PracticeSession{}, err
	}
	e.cache.UpsertSession(ctx, session)
	return session, nil
}

// fullPatch carries every mutable field of item with order as its position.
func fullPatch(item *model.SelectedItem, order int) remote.LogPatch {
	planned := item.PlannedMinutes
	return remote.LogPatch{
		PlannedMinutes: &planned,
		ActualMinutes:  item.ActualMinutes,
		Order:          &order,
		Notes:          item.Notes,
	}
}
