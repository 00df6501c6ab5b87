package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/practicesync/internal/cache"
	"github.com/mschirtzinger/practicesync/internal/mocks"
	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/remote"
)

var errOffline = errors.New("offline")

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func newEngine(t *testing.T) (*Engine, *mocks.Remote, *mocks.Cache) {
	t.Helper()
	r := &mocks.Remote{}
	c := &mocks.Cache{}
	t.Cleanup(func() {
		r.AssertExpectations(t)
		c.AssertExpectations(t)
	})
	return New(r, c, quietLogger()), r, c
}

func persisted(id, logID string, planned int, dirty bool) model.SelectedItem {
	lid := logID
	return model.SelectedItem{
		ID:             id,
		Item:           model.LibraryItem{ID: "item-" + id, Name: id},
		PlannedMinutes: planned,
		LogID:          &lid,
		IsDirty:        dirty,
	}
}

func fresh(id string, planned int) model.SelectedItem {
	return model.SelectedItem{
		ID:             id,
		Item:           model.LibraryItem{ID: "item-" + id, Name: id},
		PlannedMinutes: planned,
		IsDirty:        true,
	}
}

func intPtr(i int) *int { return &i }

func TestPull_CacheThenRemote(t *testing.T) {
	e, r, c := newEngine(t)
	cached := []model.LibraryItem{{ID: "a", Name: "cached"}}
	remoteItems := []model.LibraryItem{{ID: "a", Name: "fresh"}, {ID: "b", Name: "new"}}

	c.On("LoadLibraryItems", mock.Anything).Return(cached)
	r.On("FetchLibrary", mock.Anything).Return(remoteItems, nil)
	c.On("SaveLibraryItems", mock.Anything, remoteItems).Return()

	var states []model.Loading[[]model.LibraryItem]
	view := &recordingView[[]model.LibraryItem]{onSet: func(s model.Loading[[]model.LibraryItem]) { states = append(states, s) }}

	require.NoError(t, e.PullLibrary(context.Background(), view))
	require.Len(t, states, 2)
	assert.Equal(t, model.Loaded(cached), states[0], "cached data shown first")
	assert.Equal(t, model.Loaded(remoteItems), states[1])
}

func TestPull_FailureWithCacheKeepsCachedData(t *testing.T) {
	e, r, c := newEngine(t)
	cached := []model.LibraryItem{{ID: "a"}}

	c.On("LoadLibraryItems", mock.Anything).Return(cached)
	r.On("FetchLibrary", mock.Anything).Return(nil, errOffline)

	view := &Slot[[]model.LibraryItem]{}
	require.NoError(t, e.PullLibrary(context.Background(), view))
	assert.Equal(t, model.Loaded(cached), view.Current())
	c.AssertNotCalled(t, "SaveLibraryItems", mock.Anything, mock.Anything)
}

func TestPull_FailureWithoutCacheSurfacesError(t *testing.T) {
	e, r, c := newEngine(t)

	c.On("LoadSessions", mock.Anything).Return([]model.PracticeSession{})
	r.On("FetchSessions", mock.Anything).Return(nil, errOffline)

	var states []model.LoadState
	view := &recordingView[[]model.PracticeSession]{onSet: func(s model.Loading[[]model.PracticeSession]) { states = append(states, s.State) }}

	err := e.PullSessions(context.Background(), view)
	assert.ErrorIs(t, err, errOffline)
	assert.Equal(t, []model.LoadState{model.StateLoading, model.StateFailed}, states)
	assert.ErrorIs(t, view.Current().Err, errOffline)
}

func TestPull_FailureKeepsDataAlreadyOnScreen(t *testing.T) {
	e, r, c := newEngine(t)
	shown := []model.PracticeLog{{ID: "l1", SessionID: "s1"}}

	c.On("LoadLogs", mock.Anything, "s1").Return([]model.PracticeLog{})
	r.On("FetchLogs", mock.Anything, "s1").Return(nil, errOffline)

	view := &Slot[[]model.PracticeLog]{}
	view.Set(model.Loaded(shown))

	require.NoError(t, e.PullLogs(context.Background(), "s1", view))
	assert.Equal(t, model.Loaded(shown), view.Current())
}

func TestPull_EmptyRemotePrunesCache(t *testing.T) {
	e, r, c := newEngine(t)

	c.On("LoadLogs", mock.Anything, "s1").Return([]model.PracticeLog{{ID: "stale"}})
	r.On("FetchLogs", mock.Anything, "s1").Return(nil, nil)
	c.On("SaveLogs", mock.Anything, "s1", []model.PracticeLog{}).Return()

	view := &Slot[[]model.PracticeLog]{}
	require.NoError(t, e.PullLogs(context.Background(), "s1", view))
	assert.True(t, view.Current().IsLoaded())
	assert.Empty(t, view.Current().Value)
}

func TestPull_IdempotentAgainstRealCache(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), quietLogger())
	require.NoError(t, err)
	defer store.Close()

	r := &mocks.Remote{}
	items := []model.LibraryItem{{ID: "a", Name: "A", Type: model.ItemTypeSong, Tags: []string{}}}
	r.On("FetchLibrary", mock.Anything).Return(items, nil).Twice()

	e := New(r, store, quietLogger())
	ctx := context.Background()

	first := &Slot[[]model.LibraryItem]{}
	require.NoError(t, e.PullLibrary(ctx, first))
	second := &Slot[[]model.LibraryItem]{}
	require.NoError(t, e.PullLibrary(ctx, second))

	assert.Equal(t, first.Current(), second.Current())
	assert.Equal(t, items, store.LoadLibraryItems(ctx))
	r.AssertExpectations(t)
}

func TestSave_MixedBatch(t *testing.T) {
	e, r, c := newEngine(t)

	deleted := model.NewIDSet()
	deleted.Add("gone")

	items := []model.SelectedItem{
		fresh("new", 10),
		persisted("edited", "log-edited", 7, true),
		persisted("same", "log-same", 5, false),
	}

	r.On("DeleteLog", mock.Anything, "gone").Return(nil).Once()
	r.On("CreateLog", mock.Anything, remote.LogCreate{
		Name: "new", ItemID: "item-new", SessionID: "s1", PlannedMinutes: 10, Order: 0,
	}).Return("log-new", nil).Once()
	r.On("UpdateLog", mock.Anything, "log-edited", remote.LogPatch{
		PlannedMinutes: intPtr(7), Order: intPtr(1),
	}).Return(nil).Once()
	c.On("SaveLogs", mock.Anything, "s1", mock.MatchedBy(func(logs []model.PracticeLog) bool {
		return len(logs) == 3 && logs[0].ID == "log-new" && logs[2].Order == 2
	})).Return().Once()

	res, err := e.Save(context.Background(), "s1", items, deleted)
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Archived: 1, Created: 1, Updated: 1, Skipped: 1}, res)

	assert.False(t, deleted.Contains("gone"))
	require.NotNil(t, items[0].LogID)
	assert.Equal(t, "log-new", *items[0].LogID)
	assert.False(t, items[0].IsDirty)
	assert.False(t, items[1].IsDirty)
	r.AssertNotCalled(t, "UpdateLog", mock.Anything, "log-same", mock.Anything)
}

func TestSave_OrderFollowsCurrentPosition(t *testing.T) {
	e, r, c := newEngine(t)

	// Items arrive reordered and all dirty, as after a move.
	items := []model.SelectedItem{
		persisted("b", "log-b", 5, true),
		persisted("a", "log-a", 5, true),
	}

	r.On("UpdateLog", mock.Anything, "log-b", mock.MatchedBy(func(p remote.LogPatch) bool { return *p.Order == 0 })).Return(nil).Once()
	r.On("UpdateLog", mock.Anything, "log-a", mock.MatchedBy(func(p remote.LogPatch) bool { return *p.Order == 1 })).Return(nil).Once()
	c.On("SaveLogs", mock.Anything, "s1", mock.Anything).Return()

	_, err := e.Save(context.Background(), "s1", items, model.NewIDSet())
	require.NoError(t, err)
}

func TestSave_AbortKeepsPartialProgress(t *testing.T) {
	e, r, c := newEngine(t)

	items := []model.SelectedItem{fresh("a", 5), fresh("b", 5), fresh("c", 5)}

	r.On("CreateLog", mock.Anything, mock.MatchedBy(func(in remote.LogCreate) bool { return in.ItemID == "item-a" })).
		Return("log-a", nil).Once()
	r.On("CreateLog", mock.Anything, mock.MatchedBy(func(in remote.LogCreate) bool { return in.ItemID == "item-b" })).
		Return("", errOffline).Once()

	_, err := e.Save(context.Background(), "s1", items, nil)
	require.ErrorIs(t, err, errOffline)

	require.NotNil(t, items[0].LogID, "first create is not rolled back")
	assert.Equal(t, "log-a", *items[0].LogID)
	assert.False(t, items[0].IsDirty)
	assert.Nil(t, items[1].LogID)
	assert.True(t, items[1].IsDirty)
	assert.Nil(t, items[2].LogID, "third item never processed")
	r.AssertNumberOfCalls(t, "CreateLog", 2)
	c.AssertNotCalled(t, "SaveLogs", mock.Anything, mock.Anything, mock.Anything)
}

func TestSave_DeleteFailureAbortsAndKeepsSet(t *testing.T) {
	e, r, _ := newEngine(t)

	deleted := model.NewIDSet()
	deleted.Add("x")
	deleted.Add("y")
	deleted.Add("z")

	r.On("DeleteLog", mock.Anything, "x").Return(nil).Once()
	r.On("DeleteLog", mock.Anything, "y").Return(errOffline).Once()

	items := []model.SelectedItem{fresh("a", 5)}
	_, err := e.Save(context.Background(), "s1", items, deleted)
	require.ErrorIs(t, err, errOffline)

	assert.Equal(t, []string{"x", "y", "z"}, deleted.IDs(), "set cleared only after a clean pass")
	r.AssertNotCalled(t, "DeleteLog", mock.Anything, "z")
	r.AssertNotCalled(t, "CreateLog", mock.Anything, mock.Anything)
}

func TestRecordPractice(t *testing.T) {
	e, r, c := newEngine(t)

	actual := 6.5
	item := persisted("a", "log-a", 5, true)
	item.ActualMinutes = &actual

	r.On("UpdateLog", mock.Anything, "log-a", remote.LogPatch{
		PlannedMinutes: intPtr(5), ActualMinutes: &actual, Order: intPtr(2),
	}).Return(nil).Once()
	c.On("UpdateLog", mock.Anything, mock.MatchedBy(func(l model.PracticeLog) bool {
		return l.ID == "log-a" && l.Order == 2 && *l.ActualMinutes == 6.5 && l.SessionID == "s1"
	})).Return().Once()

	written, err := e.RecordPractice(context.Background(), "s1", &item, 2)
	require.NoError(t, err)
	assert.True(t, written)
	assert.False(t, item.IsDirty)
}

func TestRecordPractice_SkipsUnsavedItems(t *testing.T) {
	e, _, _ := newEngine(t)

	item := fresh("a", 5)
	written, err := e.RecordPractice(context.Background(), "s1", &item, 0)
	require.NoError(t, err)
	assert.False(t, written)
	assert.True(t, item.IsDirty)
}

func TestRecordPractice_FailureLeavesCacheAlone(t *testing.T) {
	e, r, c := newEngine(t)

	item := persisted("a", "log-a", 5, true)
	r.On("UpdateLog", mock.Anything, "log-a", mock.Anything).Return(errOffline).Once()

	written, err := e.RecordPractice(context.Background(), "s1", &item, 0)
	assert.ErrorIs(t, err, errOffline)
	assert.False(t, written)
	assert.True(t, item.IsDirty)
	c.AssertNotCalled(t, "UpdateLog", mock.Anything, mock.Anything)
}

func TestCreateSession(t *testing.T) {
	e, r, c := newEngine(t)
	day := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	created := model.PracticeSession{ID: "s9", Name: "Practice", Date: day, GoalMinutes: 30}

	r.On("CreateSession", mock.Anything, "Practice", "2026-03-04", 30).Return(created, nil).Once()
	c.On("UpsertSession", mock.Anything, created).Return().Once()

	got, err := e.CreateSession(context.Background(), "Practice", day, 30)
	require.NoError(t, err)
	assert.Equal(t, "s9", got.ID)
}

// recordingView is a View that reports every Set.
type recordingView[T any] struct {
	state model.Loading[T]
	onSet func(model.Loading[T])
}

func (v *recordingView[T]) Current() model.Loading[T] { return v.state }

func (v *recordingView[T]) Set(s model.Loading[T]) {
	v.state = s
	v.onSet(s)
}
