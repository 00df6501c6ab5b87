// Package session is the state machine behind a practice UI: which items
// are selected for the chosen day, which of them diverge from the remote,
// and which one is being practiced.
//
// Lifecycle:
//
//	Idle -> Configuring (items selected) -> Practicing(index) -> run ends
//
// When a run ends the controller is idle again in the sense that nothing is
// practiced; the phase reports Configuring as long as items stay selected.
//
// The controller owns the selection, the pending-archive set and the timer.
// Network and cache work runs outside its lock and is folded back in
// afterwards. State changes are published per slice (catalog, selection,
// timer, overtime, save) on a notify.Broker so a timer tick never forces
// observers of unrelated state to re-render.
package session

import (
	"context"
	"errors"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/practicesync/internal/library"
	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/notify"
	"github.com/mschirtzinger/practicesync/internal/reconcile"
	"github.com/mschirtzinger/practicesync/internal/timer"
)

// Phase is the coarse lifecycle state. It is derived from the selection and
// the run: PhaseIdle means nothing is selected, PhaseConfiguring means items
// are selected but no run is active. Finishing, skipping past the last item
// or stopping ends the run, which leaves the timer reset and CurrentItem
// reporting false; the phase then reads PhaseConfiguring while the items
// stay selected for the next run or a save.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfiguring
	PhasePracticing
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConfiguring:
		return "configuring"
	case PhasePracticing:
		return "practicing"
	default:
		return "unknown"
	}
}

// Config tunes a Controller.
type Config struct {
	DefaultPlannedMinutes int
	GoalMinutes           int
	TickInterval          time.Duration
	Now                   func() time.Time
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		DefaultPlannedMinutes: 5,
		GoalMinutes:           model.DefaultGoalMinutes,
		TickInterval:          timer.DefaultInterval,
		Now:                   time.Now,
	}
}

// Controller coordinates selection, persistence and the practice timer.
type Controller struct {
	mu sync.Mutex

	engine   *reconcile.Engine
	notifier notify.Notifier
	broker   *notify.Broker
	logger   *log.Logger
	cfg      Config
	timer    *timer.Timer

	library     model.Loading[[]model.LibraryItem]
	sessions    model.Loading[[]model.PracticeSession]
	libraryView *library.View

	selectedDate time.Time
	current      *model.PracticeSession
	selected     []model.SelectedItem
	deleted      *model.IDSet

	practicing bool
	index      int
	alertFired bool

	saving         bool
	loadingSession bool
	recording      bool
	lastErr        error
}

// New creates a controller for today's date. A nil notifier discards
// alerts; a nil broker disables change notification.
func New(engine *reconcile.Engine, notifier notify.Notifier, broker *notify.Broker, cfg Config, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	def := DefaultConfig()
	if cfg.DefaultPlannedMinutes <= 0 {
		cfg.DefaultPlannedMinutes = def.DefaultPlannedMinutes
	}
	if cfg.GoalMinutes <= 0 {
		cfg.GoalMinutes = def.GoalMinutes
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}

	c := &Controller{
		engine:       engine,
		notifier:     notifier,
		broker:       broker,
		logger:       logger,
		cfg:          cfg,
		library:      model.Idle[[]model.LibraryItem](),
		sessions:     model.Idle[[]model.PracticeSession](),
		libraryView:  library.NewView(),
		selectedDate: startOfDay(cfg.Now()),
		deleted:      model.NewIDSet(),
	}
	c.timer = timer.New(cfg.TickInterval, c.handleTick)
	return c
}

// Close stops the timer.
func (c *Controller) Close() {
	c.timer.Pause()
}

// Refresh pulls the library and the sessions concurrently. Each collection
// succeeds or fails on its own; the returned error joins the failures that
// left a view without data.
func (c *Controller) Refresh(ctx context.Context) error {
	var libErr, sessErr error

	var g errgroup.Group
	g.Go(func() error {
		libErr = c.engine.PullLibrary(ctx, reconcile.FuncView[[]model.LibraryItem]{
			Get: c.Library,
			Put: c.setLibrary,
		})
		return nil
	})
	g.Go(func() error {
		sessErr = c.engine.PullSessions(ctx, reconcile.FuncView[[]model.PracticeSession]{
			Get: c.Sessions,
			Put: c.setSessions,
		})
		return nil
	})
	_ = g.Wait()

	return errors.Join(libErr, sessErr)
}

func (c *Controller) setLibrary(state model.Loading[[]model.LibraryItem]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.library = state
	if state.IsLoaded() {
		c.libraryView.SetItems(state.Value)
		c.resolvePlaceholdersLocked()
	}
	c.publishCatalogLocked()
}

func (c *Controller) setSessions(state model.Loading[[]model.PracticeSession]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions = state
	c.publishCatalogLocked()
}

// resolvePlaceholdersLocked swaps placeholder items for library entries
// that have since loaded.
func (c *Controller) resolvePlaceholdersLocked() {
	for i := range c.selected {
		if c.selected[i].Item.Type != model.ItemTypeUnknown {
			continue
		}
		if item, ok := c.libraryView.Lookup(c.selected[i].Item.ID); ok {
			c.selected[i].Item = item
		}
	}
}

// SelectDate makes day current, stops any practice run and loads the logs
// of that day's session (cache first, then remote) into the selection.
// A day without a session yields an empty selection.
func (c *Controller) SelectDate(ctx context.Context, day time.Time) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}

	c.stopLocked()
	c.selectedDate = startOfDay(day)
	c.selected = nil
	c.deleted.Clear()
	c.current = nil

	var sessions []model.PracticeSession
	if c.sessions.IsLoaded() {
		sessions = c.sessions.Value
	}
	found, ok := model.SessionForDay(sessions, c.selectedDate)
	if !ok {
		c.publishSelectionLocked()
		c.mu.Unlock()
		return nil
	}

	c.current = &found
	c.loadingSession = true
	c.publishSelectionLocked()
	c.mu.Unlock()

	return c.loadLogs(ctx, found.ID)
}

// Reload re-pulls the logs of the current session, discarding local edits.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.practicing {
		c.mu.Unlock()
		return ErrItemInPractice
	}
	id := c.current.ID
	c.loadingSession = true
	c.deleted.Clear()
	c.mu.Unlock()

	return c.loadLogs(ctx, id)
}

func (c *Controller) loadLogs(ctx context.Context, sessionID string) error {
	slot := &reconcile.Slot[[]model.PracticeLog]{}
	err := c.engine.PullLogs(ctx, sessionID, reconcile.FuncView[[]model.PracticeLog]{
		Get: slot.Current,
		Put: func(state model.Loading[[]model.PracticeLog]) {
			slot.Set(state)
			if state.IsLoaded() {
				c.hydrate(sessionID, state.Value)
			}
		},
	})

	c.mu.Lock()
	c.loadingSession = false
	if err != nil {
		c.lastErr = err
	}
	c.publishSelectionLocked()
	c.mu.Unlock()
	return err
}

// hydrate replaces the selection with clean items built from logs.
func (c *Controller) hydrate(sessionID string, logs []model.PracticeLog) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.ID != sessionID {
		return
	}

	ordered := slices.Clone(logs)
	slices.SortStableFunc(ordered, func(a, b model.PracticeLog) int { return a.Order - b.Order })

	items := make([]model.SelectedItem, 0, len(ordered))
	for _, l := range ordered {
		item, ok := c.libraryView.Lookup(l.ItemID)
		if !ok {
			item = model.PlaceholderItem(l)
		}
		items = append(items, model.SelectedFromLog(l, item))
	}
	c.selected = items
	c.publishSelectionLocked()
}

// Save pushes the selection to the remote. When the selected date has no
// session yet, one named "Practice <date>" is created first.
//
// The save is not atomic: on failure, items confirmed before the failing
// one keep their log ids and clean state, and the error is returned.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}
	if len(c.selected) == 0 && c.deleted.Len() == 0 {
		c.mu.Unlock()
		return nil
	}
	c.saving = true
	items := slices.Clone(c.selected)
	deleted := c.deleted.Clone()
	current := c.current
	day := c.selectedDate
	c.publishSelectionLocked()
	c.mu.Unlock()

	var sessionID string
	if current != nil {
		sessionID = current.ID
	} else {
		created, err := c.engine.CreateSession(ctx, "Practice "+model.DayKey(day), day, c.cfg.GoalMinutes)
		if err != nil {
			c.finishSave(nil, nil, reconcile.SaveResult{}, err)
			return err
		}
		c.adoptSession(created)
		sessionID = created.ID
	}

	res, err := c.engine.Save(ctx, sessionID, items, deleted)
	c.finishSave(items, deleted, res, err)
	return err
}

func (c *Controller) adoptSession(s model.PracticeSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = &s
	if c.sessions.IsLoaded() {
		c.sessions = model.Loaded(append(slices.Clone(c.sessions.Value), s))
	} else {
		c.sessions = model.Loaded([]model.PracticeSession{s})
	}
	c.publishCatalogLocked()
}

// finishSave folds the engine's results back into the selection.
func (c *Controller) finishSave(items []model.SelectedItem, deleted *model.IDSet, res reconcile.SaveResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, saved := range items {
		i := c.indexOfLocked(saved.ID)
		if i < 0 {
			continue
		}
		c.selected[i].LogID = saved.LogID
		c.selected[i].IsDirty = saved.IsDirty
	}
	if deleted != nil {
		c.deleted = deleted
	}

	c.saving = false
	c.lastErr = err
	if err != nil {
		c.logger.Printf("save failed: %v", err)
	}

	c.broker.Publish(notify.TopicSave, SaveEvent{Result: res, Err: errString(err)})
	c.publishSelectionLocked()
}

// SaveEvent is published after every save.
type SaveEvent struct {
	Result reconcile.SaveResult `json:"result"`
	Err    string               `json:"error,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// busyLocked reports whether remote work on the selection is in flight:
// a save, a session load or a single-item practice write.
func (c *Controller) busyLocked() bool {
	return c.saving || c.loadingSession || c.recording
}

func (c *Controller) indexOfLocked(id string) int {
	for i := range c.selected {
		if c.selected[i].ID == id {
			return i
		}
	}
	return -1
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
