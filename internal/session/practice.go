package session

import (
	"context"

	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/notify"
	"github.com/mschirtzinger/practicesync/internal/timer"
)

// StartPractice begins a run at the first selected item.
func (c *Controller) StartPractice() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.selected) == 0 {
		return ErrEmptySelection
	}
	if c.practicing {
		return nil
	}

	c.practicing = true
	c.beginLocked(0)
	c.timer.Resume()
	c.publishSelectionLocked()
	return nil
}

// beginLocked makes position i current. Elapsed time is seeded from the
// item's recorded practice; an item already past its plan starts with the
// alert spent.
func (c *Controller) beginLocked(i int) {
	c.index = i
	item := &c.selected[i]
	seed := item.ActualSeconds()
	c.alertFired = seed >= item.PlannedSeconds()
	c.timer.SetElapsed(seed)
}

// stopLocked ends the run without recording anything.
func (c *Controller) stopLocked() {
	c.timer.Reset()
	c.practicing = false
	c.index = 0
	c.alertFired = false
}

// StopPractice ends the run. Elapsed time of the current item is discarded.
func (c *Controller) StopPractice() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.practicing {
		return
	}
	c.stopLocked()
	c.publishSelectionLocked()
}

// PauseTimer pauses the run.
func (c *Controller) PauseTimer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.practicing {
		return ErrNotPracticing
	}
	c.timer.Pause()
	c.publishTimerLocked()
	return nil
}

// ResumeTimer resumes the run.
func (c *Controller) ResumeTimer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.practicing {
		return ErrNotPracticing
	}
	c.timer.Resume()
	c.publishTimerLocked()
	return nil
}

// ToggleTimer flips between paused and running.
func (c *Controller) ToggleTimer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.practicing {
		return ErrNotPracticing
	}
	c.timer.Toggle()
	c.publishTimerLocked()
	return nil
}

// SkipToNextItem advances without recording. Skipping past the last item
// ends the run.
func (c *Controller) SkipToNextItem() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.practicing {
		return ErrNotPracticing
	}
	if c.index+1 < len(c.selected) {
		c.beginLocked(c.index + 1)
	} else {
		c.stopLocked()
	}
	c.publishSelectionLocked()
	return nil
}

// FinishCurrentItem records elapsed time on the current item, writes it to
// the remote when the item is persisted, and ends the run.
func (c *Controller) FinishCurrentItem(ctx context.Context) error {
	return c.finish(ctx, false)
}

// FinishAndNextItem records the current item and moves to the next one.
// After the last item the run ends.
func (c *Controller) FinishAndNextItem(ctx context.Context) error {
	return c.finish(ctx, true)
}

func (c *Controller) finish(ctx context.Context, advance bool) error {
	c.mu.Lock()
	if !c.practicing {
		c.mu.Unlock()
		return ErrNotPracticing
	}
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}

	idx := c.index
	actual := c.timer.Elapsed() / 60
	item := &c.selected[idx]
	item.ActualMinutes = &actual
	item.MarkDirty()
	snapshot := *item

	var sessionID string
	if c.current != nil {
		sessionID = c.current.ID
	}

	if advance && idx+1 < len(c.selected) {
		c.beginLocked(idx + 1)
	} else {
		c.stopLocked()
	}
	c.recording = sessionID != ""
	c.publishSelectionLocked()
	c.mu.Unlock()

	if sessionID == "" {
		return nil
	}

	written, err := c.engine.RecordPractice(ctx, sessionID, &snapshot, idx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	if err != nil {
		c.lastErr = err
		c.logger.Printf("record practice failed: %v", err)
		c.publishSelectionLocked()
		return err
	}
	if !written {
		c.publishSelectionLocked()
		return nil
	}
	if i := c.indexOfLocked(snapshot.ID); i == idx && unchangedSince(c.selected[i], snapshot) {
		c.selected[i].IsDirty = false
	}
	c.publishSelectionLocked()
	return nil
}

// unchangedSince reports whether cur still carries the values that were
// written from snap.
func unchangedSince(cur, snap model.SelectedItem) bool {
	return cur.PlannedMinutes == snap.PlannedMinutes &&
		cur.ActualMinutes == snap.ActualMinutes &&
		cur.Notes == snap.Notes &&
		cur.LogID != nil && snap.LogID != nil && *cur.LogID == *snap.LogID
}

// handleTick receives timer ticks. The overtime alert fires when remaining
// time crosses from positive to non-positive, at most once per item. Ticks
// applied before the current item's elapsed time was seeded are dropped.
func (c *Controller) handleTick(tk timer.Tick) {
	c.mu.Lock()
	if !c.practicing || c.index >= len(c.selected) || tk.Epoch != c.timer.Epoch() {
		c.mu.Unlock()
		return
	}

	item := c.selected[c.index]
	planned := item.PlannedSeconds()
	fire := planned-tk.Before > 0 && planned-tk.After <= 0 && !c.alertFired
	if fire {
		c.alertFired = true
	}
	c.publishTimerLocked()
	c.mu.Unlock()

	if fire {
		c.notifier.Overtime(item)
		c.broker.Publish(notify.TopicOvertime, item)
	}
}
