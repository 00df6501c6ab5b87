// Package model defines the practice entities shared by the remote client,
// the local cache, the reconciliation engine and the session state machine.
//
// LibraryItem, PracticeSession and PracticeLog mirror rows of the remote
// document collections. SelectedItem is the mutable, UI-session-scoped
// projection of a PracticeLog before and while it is persisted.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-day layout used for session dates on the wire
// and in the cache.
const DateLayout = "2006-01-02"

// DefaultGoalMinutes is the target length of a newly created session.
const DefaultGoalMinutes = 30

// ItemType classifies a library item.
type ItemType string

const (
	ItemTypeSong         ItemType = "Song"
	ItemTypeExercise     ItemType = "Exercise"
	ItemTypeCourseLesson ItemType = "Course Lesson"
	ItemTypeUnknown      ItemType = "Unknown"
)

// ParseItemType maps a remote select value onto an ItemType.
// Matching is case-insensitive; anything unrecognised becomes ItemTypeUnknown.
func ParseItemType(s string) ItemType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "song":
		return ItemTypeSong
	case "exercise":
		return ItemTypeExercise
	case "course lesson", "courselesson", "lesson":
		return ItemTypeCourseLesson
	default:
		return ItemTypeUnknown
	}
}

// LibraryItem is a practiceable entity. It is never created locally.
type LibraryItem struct {
	// ===== Identification =====
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Type ItemType `json:"type"`

	// ===== Classification =====
	Artist *string  `json:"artist,omitempty"`
	Tags   []string `json:"tags,omitempty"`

	// ===== Practice history =====
	LastPracticed  *time.Time `json:"last_practiced,omitempty"`
	TimesPracticed int        `json:"times_practiced"`
}

// Validate checks if the LibraryItem has valid field values.
func (i *LibraryItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("id is required")
	}
	if i.TimesPracticed < 0 {
		return fmt.Errorf("times practiced must be non-negative (got %d)", i.TimesPracticed)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (i *LibraryItem) SetDefaults() {
	if i.Type == "" {
		i.Type = ItemTypeUnknown
	}
	if i.Tags == nil {
		i.Tags = []string{}
	}
}

// PracticeSession is a calendar-day practice container.
type PracticeSession struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	GoalMinutes int       `json:"goal_minutes"`
}

// Validate checks if the PracticeSession has valid field values.
func (s *PracticeSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.GoalMinutes <= 0 {
		return fmt.Errorf("goal minutes must be positive (got %d)", s.GoalMinutes)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (s *PracticeSession) SetDefaults() {
	if s.GoalMinutes <= 0 {
		s.GoalMinutes = DefaultGoalMinutes
	}
}

// DayKey returns the calendar-day bucket for the session.
func (s *PracticeSession) DayKey() string {
	return DayKey(s.Date)
}

// DayKey formats t as a calendar-day bucket key in t's own location.
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDay parses a calendar date ("2006-01-02") or an RFC 3339 timestamp.
// Plain dates are interpreted in the local time zone.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// SessionForDay returns the first session whose date falls on the same
// calendar day as day.
func SessionForDay(sessions []PracticeSession, day time.Time) (PracticeSession, bool) {
	key := DayKey(day)
	for _, s := range sessions {
		if s.DayKey() == key {
			return s, true
		}
	}
	return PracticeSession{}, false
}

// PracticeLog links one LibraryItem to one PracticeSession.
type PracticeLog struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	ItemID         string   `json:"item_id"`
	SessionID      string   `json:"session_id"`
	PlannedMinutes int      `json:"planned_minutes"`
	ActualMinutes  *float64 `json:"actual_minutes,omitempty"`
	Order          int      `json:"order"`
	Notes          *string  `json:"notes,omitempty"`
}

// Validate checks if the PracticeLog has valid field values.
func (l *PracticeLog) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if l.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if l.PlannedMinutes <= 0 {
		return fmt.Errorf("planned minutes must be positive (got %d)", l.PlannedMinutes)
	}
	if l.ActualMinutes != nil && *l.ActualMinutes < 0 {
		return fmt.Errorf("actual minutes must be non-negative (got %f)", *l.ActualMinutes)
	}
	return nil
}

// SelectedItem is an item chosen for the current session. It holds the local
// state of a PracticeLog until that state is confirmed by the remote.
//
// Invariant: LogID == nil implies IsDirty.
type SelectedItem struct {
	ID             string      `json:"id"`
	Item           LibraryItem `json:"item"`
	PlannedMinutes int         `json:"planned_minutes"`
	ActualMinutes  *float64    `json:"actual_minutes,omitempty"`
	LogID          *string     `json:"log_id,omitempty"`
	IsDirty        bool        `json:"is_dirty"`
	Notes          *string     `json:"notes,omitempty"`
}

// NewSelectedItem creates a never-synced selection for item.
func NewSelectedItem(item LibraryItem, plannedMinutes int) SelectedItem {
	return SelectedItem{
		ID:             uuid.NewString(),
		Item:           item,
		PlannedMinutes: plannedMinutes,
		IsDirty:        true,
	}
}

// SelectedFromLog hydrates a clean selection from a persisted log.
func SelectedFromLog(log PracticeLog, item LibraryItem) SelectedItem {
	logID := log.ID
	return SelectedItem{
		ID:             log.ID,
		Item:           item,
		PlannedMinutes: log.PlannedMinutes,
		ActualMinutes:  copyFloat(log.ActualMinutes),
		LogID:          &logID,
		IsDirty:        false,
		Notes:          copyString(log.Notes),
	}
}

// IsPersisted reports whether the item has a remote log.
func (s *SelectedItem) IsPersisted() bool {
	return s.LogID != nil && *s.LogID != ""
}

// MarkDirty flags the item as diverging from the remote.
func (s *SelectedItem) MarkDirty() {
	s.IsDirty = true
}

// MarkClean records that the remote confirmed the item's current state.
// A never-synced item cannot be clean.
func (s *SelectedItem) MarkClean() {
	s.IsDirty = !s.IsPersisted()
}

// PlannedSeconds returns the planned duration in seconds.
func (s *SelectedItem) PlannedSeconds() float64 {
	return float64(s.PlannedMinutes) * 60
}

// ActualSeconds returns recorded practice time in seconds, or zero.
func (s *SelectedItem) ActualSeconds() float64 {
	if s.ActualMinutes == nil {
		return 0
	}
	return *s.ActualMinutes * 60
}

// ToLog converts the selection into a log row for the given session and
// position. The selection must be persisted.
func (s *SelectedItem) ToLog(sessionID string, order int) PracticeLog {
	log := PracticeLog{
		Name:           s.Item.Name,
		ItemID:         s.Item.ID,
		SessionID:      sessionID,
		PlannedMinutes: s.PlannedMinutes,
		ActualMinutes:  copyFloat(s.ActualMinutes),
		Order:          order,
		Notes:          copyString(s.Notes),
	}
	if s.LogID != nil {
		log.ID = *s.LogID
	}
	return log
}

// PlaceholderItem stands in for a library item referenced by a log but
// missing from the library.
func PlaceholderItem(log PracticeLog) LibraryItem {
	return LibraryItem{
		ID:   log.ItemID,
		Name: log.Name,
		Type: ItemTypeUnknown,
		Tags: []string{},
	}
}

// CacheMetadata records when a cached collection was last written.
type CacheMetadata struct {
	Key         string    `json:"key"`
	LastUpdated time.Time `json:"last_updated"`
}

// Metadata keys, one per logical collection.
const (
	MetadataLibrary  = "library"
	MetadataSessions = "sessions"
)

// MetadataLogs returns the metadata key for one session's logs.
func MetadataLogs(sessionID string) string {
	return "logs:" + sessionID
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
