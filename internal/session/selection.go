package session

import (
	"slices"

	"github.com/mschirtzinger/practicesync/internal/model"
)

// ToggleSelection adds item to the selection with the default planned time,
// or removes it when it is already selected.
func (c *Controller) ToggleSelection(item model.LibraryItem) error {
	return c.AddOrRemove(item, c.cfg.DefaultPlannedMinutes)
}

// AddOrRemove is ToggleSelection with an explicit planned time for additions.
func (c *Controller) AddOrRemove(item model.LibraryItem, plannedMinutes int) error {
	if plannedMinutes <= 0 {
		return ErrInvalidMinutes
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busyLocked() {
		return ErrBusy
	}

	for i := range c.selected {
		if c.selected[i].Item.ID == item.ID {
			return c.removeLocked(i)
		}
	}

	c.selected = append(c.selected, model.NewSelectedItem(item, plannedMinutes))
	c.publishSelectionLocked()
	return nil
}

// RemoveSelectedItem drops the selection with id. Persisted items are queued
// for archiving on the next save.
func (c *Controller) RemoveSelectedItem(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busyLocked() {
		return ErrBusy
	}
	i := c.indexOfLocked(id)
	if i < 0 {
		return ErrItemNotFound
	}
	return c.removeLocked(i)
}

func (c *Controller) removeLocked(i int) error {
	if c.practicing && i == c.index {
		return ErrItemInPractice
	}

	if item := c.selected[i]; item.IsPersisted() {
		c.deleted.Add(*item.LogID)
	}
	c.selected = slices.Delete(c.selected, i, i+1)
	if c.practicing && i < c.index {
		c.index--
	}
	c.publishSelectionLocked()
	return nil
}

// UpdatePlannedTime sets the planned minutes of the selection with id.
func (c *Controller) UpdatePlannedTime(id string, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidMinutes
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busyLocked() {
		return ErrBusy
	}
	i := c.indexOfLocked(id)
	if i < 0 {
		return ErrItemNotFound
	}
	if c.selected[i].PlannedMinutes == minutes {
		return nil
	}
	c.selected[i].PlannedMinutes = minutes
	c.selected[i].MarkDirty()
	c.publishSelectionLocked()
	return nil
}

// UpdateNotes sets the notes of the selection with id.
func (c *Controller) UpdateNotes(id, notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busyLocked() {
		return ErrBusy
	}
	i := c.indexOfLocked(id)
	if i < 0 {
		return ErrItemNotFound
	}
	if cur := c.selected[i].Notes; cur != nil && *cur == notes {
		return nil
	}
	c.selected[i].Notes = &notes
	c.selected[i].MarkDirty()
	c.publishSelectionLocked()
	return nil
}

// MoveSelectedItem moves the selection at position from to position to.
// Every item's order is its position, so every item becomes dirty.
func (c *Controller) MoveSelectedItem(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busyLocked() {
		return ErrBusy
	}
	n := len(c.selected)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrItemNotFound
	}
	if from == to {
		return nil
	}

	var practicingID string
	if c.practicing {
		practicingID = c.selected[c.index].ID
	}

	item := c.selected[from]
	c.selected = slices.Delete(c.selected, from, from+1)
	c.selected = slices.Insert(c.selected, to, item)
	for i := range c.selected {
		c.selected[i].MarkDirty()
	}

	if practicingID != "" {
		c.index = c.indexOfLocked(practicingID)
	}
	c.publishSelectionLocked()
	return nil
}

// ClearSelection removes every item, queueing persisted ones for archiving.
func (c *Controller) ClearSelection() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busyLocked() {
		return ErrBusy
	}
	if c.practicing {
		return ErrItemInPractice
	}
	for _, item := range c.selected {
		if item.IsPersisted() {
			c.deleted.Add(*item.LogID)
		}
	}
	c.selected = nil
	c.publishSelectionLocked()
	return nil
}
