// Package reconcile merges remote practice data into the local cache and
// pushes local selection edits back to the remote.
//
// Pull is cache-first-then-refresh: cached rows are shown immediately, the
// authoritative collection is fetched, and on success it replaces both the
// view and the cache. A failed fetch never replaces data already on screen.
//
// Push is an explicit, sequential, non-atomic save: archives first, then
// creates and updates in list order. The first failure stops the save and
// everything confirmed before it stays confirmed.
//
// The engine holds no state of its own. It operates on the views, slices
// and sets passed to it by the session state machine.
package reconcile

import (
	"context"

	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/remote"
)

// Remote is the document API as seen by the engine.
//
// Every call is independent; the engine sequences calls where order matters
// and never issues two updates for the same log concurrently.
type Remote interface {
	// FetchLibrary returns the full library collection.
	FetchLibrary(ctx context.Context) ([]model.LibraryItem, error)

	// FetchSessions returns every session.
	FetchSessions(ctx context.Context) ([]model.PracticeSession, error)

	// FetchLogs returns the logs of one session.
	FetchLogs(ctx context.Context, sessionID string) ([]model.PracticeLog, error)

	// CreateSession creates a session on isoDate and echoes it back.
	CreateSession(ctx context.Context, name, isoDate string, goalMinutes int) (model.PracticeSession, error)

	// CreateLog creates a log and returns its server id.
	CreateLog(ctx context.Context, in remote.LogCreate) (string, error)

	// UpdateLog sends a partial update. Nil fields are left untouched remotely.
	UpdateLog(ctx context.Context, logID string, patch remote.LogPatch) error

	// DeleteLog archives a log.
	DeleteLog(ctx context.Context, logID string) error
}

// Cache is the local mirror as seen by the engine.
//
// Every method is fail-soft: loads return an empty collection and saves
// swallow (and log) their errors. The engine therefore never has to decide
// what a cache failure means.
type Cache interface {
	// LoadLibraryItems returns the cached library.
	LoadLibraryItems(ctx context.Context) []model.LibraryItem

	// LoadSessions returns the cached sessions.
	LoadSessions(ctx context.Context) []model.PracticeSession

	// LoadLogs returns the cached logs of one session.
	LoadLogs(ctx context.Context, sessionID string) []model.PracticeLog

	// SaveLibraryItems upserts items and prunes every other cached item.
	SaveLibraryItems(ctx context.Context, items []model.LibraryItem)

	// SaveSessions upserts sessions and prunes every other cached session.
	SaveSessions(ctx context.Context, sessions []model.PracticeSession)

	// UpsertSession writes one session without pruning.
	UpsertSession(ctx context.Context, session model.PracticeSession)

	// SaveLogs upserts logs and prunes the other cached logs of sessionID.
	SaveLogs(ctx context.Context, sessionID string, logs []model.PracticeLog)

	// UpdateLog patches one cached log; a missing row is ignored.
	UpdateLog(ctx context.Context, log model.PracticeLog)
}

// View is the display slot a pull publishes into.
type View[T any] interface {
	// Current returns what the slot shows now.
	Current() model.Loading[T]

	// Set replaces what the slot shows.
	Set(state model.Loading[T])
}

// FuncView adapts a getter and setter pair to View.
type FuncView[T any] struct {
	Get func() model.Loading[T]
	Put func(model.Loading[T])
}

// Current implements View.
func (v FuncView[T]) Current() model.Loading[T] {
	if v.Get == nil {
		return model.Idle[T]()
	}
	return v.Get()
}

// Set implements View.
func (v FuncView[T]) Set(state model.Loading[T]) {
	if v.Put != nil {
		v.Put(state)
	}
}

// Slot is a standalone View backed by a field, for callers without a
// state machine of their own.
type Slot[T any] struct {
	state model.Loading[T]
}

// Current implements View.
func (s *Slot[T]) Current() model.Loading[T] { return s.state }

// Set implements View.
func (s *Slot[T]) Set(state model.Loading[T]) { s.state = state }
