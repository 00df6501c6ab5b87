package session

import (
	"slices"
	"time"

	"github.com/mschirtzinger/practicesync/internal/library"
	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/notify"
	"github.com/mschirtzinger/practicesync/internal/timer"
)

// TimerState is the practice clock as shown to the user.
type TimerState struct {
	Running          bool    `json:"running"`
	Index            int     `json:"index"`
	ItemName         string  `json:"item_name"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	OvertimeSeconds  float64 `json:"overtime_seconds"`
	Elapsed          string  `json:"elapsed"`
	Remaining        string  `json:"remaining"`
	Overtime         string  `json:"overtime"`
}

// IsOvertime reports whether the current item ran past its plan.
func (s TimerState) IsOvertime() bool {
	return s.OvertimeSeconds > 0
}

// SelectionState is a snapshot of the selection.
type SelectionState struct {
	Date           string               `json:"date"`
	SessionID      string               `json:"session_id,omitempty"`
	Phase          string               `json:"phase"`
	Index          int                  `json:"index"`
	Items          []model.SelectedItem `json:"items"`
	Deleted        []string             `json:"deleted_log_ids"`
	Saving         bool                 `json:"saving"`
	LoadingSession bool                 `json:"loading_session"`
	Recording      bool                 `json:"recording"`
}

// CatalogState summarizes the library and session collections.
type CatalogState struct {
	Library       string `json:"library"`
	LibraryItems  int    `json:"library_items"`
	LibraryError  string `json:"library_error,omitempty"`
	Sessions      string `json:"sessions"`
	SessionCount  int    `json:"session_count"`
	SessionsError string `json:"sessions_error,omitempty"`
}

// Progress compares the selection against the session goal.
type Progress struct {
	GoalMinutes    int     `json:"goal_minutes"`
	PlannedMinutes int     `json:"planned_minutes"`
	ActualMinutes  float64 `json:"actual_minutes"`
}

// Phase returns the lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case c.practicing:
		return PhasePracticing
	case len(c.selected) > 0:
		return PhaseConfiguring
	default:
		return PhaseIdle
	}
}

// Library returns the library load state.
func (c *Controller) Library() model.Loading[[]model.LibraryItem] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.library
}

// Sessions returns the sessions load state.
func (c *Controller) Sessions() model.Loading[[]model.PracticeSession] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

// QueryLibrary filters and sorts the loaded library.
func (c *Controller) QueryLibrary(q library.Query) []model.LibraryItem {
	return c.libraryView.Query(q)
}

// LibraryItem returns the loaded library item with id.
func (c *Controller) LibraryItem(id string) (model.LibraryItem, bool) {
	return c.libraryView.Lookup(id)
}

// SelectedDate returns the day being edited.
func (c *Controller) SelectedDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedDate
}

// CurrentSession returns the session of the selected date, if any.
func (c *Controller) CurrentSession() (model.PracticeSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return model.PracticeSession{}, false
	}
	return *c.current, true
}

// SelectedItems returns a copy of the selection.
func (c *Controller) SelectedItems() []model.SelectedItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.selected)
}

// CurrentItem returns the item being practiced.
func (c *Controller) CurrentItem() (model.SelectedItem, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.practicing {
		return model.SelectedItem{}, -1, false
	}
	return c.selected[c.index], c.index, true
}

// DeletedLogIDs returns the logs queued for archiving.
func (c *Controller) DeletedLogIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleted.IDs()
}

// IsSaving reports whether a save is in flight.
func (c *Controller) IsSaving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

// IsLoadingSession reports whether a session's logs are loading.
func (c *Controller) IsLoadingSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingSession
}

// IsBusy reports whether a save, a session load or a practice write is in
// flight. Selection edits return ErrBusy meanwhile.
func (c *Controller) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busyLocked()
}

// HasUnsavedChanges reports whether a save would make remote calls.
func (c *Controller) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted.Len() > 0 {
		return true
	}
	for _, item := range c.selected {
		if item.IsDirty {
			return true
		}
	}
	return false
}

// LastError returns the error of the most recent failed background action.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Progress returns planned and practiced totals against the goal.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := Progress{GoalMinutes: c.cfg.GoalMinutes}
	if c.current != nil && c.current.GoalMinutes > 0 {
		p.GoalMinutes = c.current.GoalMinutes
	}
	for _, item := range c.selected {
		p.PlannedMinutes += item.PlannedMinutes
		if item.ActualMinutes != nil {
			p.ActualMinutes += *item.ActualMinutes
		}
	}
	return p
}

// Timer returns the practice clock.
func (c *Controller) Timer() TimerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timerStateLocked()
}

func (c *Controller) timerStateLocked() TimerState {
	elapsed := c.timer.Elapsed()
	st := TimerState{
		Running:        c.timer.IsRunning(),
		Index:          -1,
		ElapsedSeconds: elapsed,
	}
	if c.practicing {
		item := c.selected[c.index]
		planned := item.PlannedSeconds()
		st.Index = c.index
		st.ItemName = item.Item.Name
		st.RemainingSeconds = max(planned-elapsed, 0)
		st.OvertimeSeconds = max(elapsed-planned, 0)
	}
	st.Elapsed = timer.FormatDuration(st.ElapsedSeconds)
	st.Remaining = timer.FormatDuration(st.RemainingSeconds)
	st.Overtime = "+" + timer.FormatDuration(st.OvertimeSeconds)
	return st
}

// Selection returns a snapshot of the selection state.
func (c *Controller) Selection() SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectionStateLocked()
}

func (c *Controller) selectionStateLocked() SelectionState {
	st := SelectionState{
		Date:           model.DayKey(c.selectedDate),
		Phase:          c.phaseLocked().String(),
		Index:          -1,
		Items:          slices.Clone(c.selected),
		Deleted:        c.deleted.IDs(),
		Saving:         c.saving,
		LoadingSession: c.loadingSession,
		Recording:      c.recording,
	}
	if st.Items == nil {
		st.Items = []model.SelectedItem{}
	}
	if c.current != nil {
		st.SessionID = c.current.ID
	}
	if c.practicing {
		st.Index = c.index
	}
	return st
}

// Catalog returns a summary of the loaded collections.
func (c *Controller) Catalog() CatalogState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalogStateLocked()
}

func (c *Controller) catalogStateLocked() CatalogState {
	st := CatalogState{
		Library:      c.library.State.String(),
		LibraryItems: len(c.library.Value),
		Sessions:     c.sessions.State.String(),
		SessionCount: len(c.sessions.Value),
	}
	if c.library.Err != nil {
		st.LibraryError = c.library.Err.Error()
	}
	if c.sessions.Err != nil {
		st.SessionsError = c.sessions.Err.Error()
	}
	return st
}

func (c *Controller) publishSelectionLocked() {
	if c.broker == nil {
		return
	}
	c.broker.Publish(notify.TopicSelection, c.selectionStateLocked())
}

func (c *Controller) publishTimerLocked() {
	if c.broker == nil {
		return
	}
	c.broker.Publish(notify.TopicTimer, c.timerStateLocked())
}

func (c *Controller) publishCatalogLocked() {
	if c.broker == nil {
		return
	}
	c.broker.Publish(notify.TopicCatalog, c.catalogStateLocked())
}
