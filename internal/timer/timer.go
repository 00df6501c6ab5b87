// Package timer implements the cancellable elapsed-time clock that drives a
// practice run.
package timer

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultInterval is the tick period.
const DefaultInterval = 100 * time.Millisecond

// Tick reports one increment of elapsed time.
//
// Epoch identifies the elapsed-time value the tick was applied to. It
// changes whenever SetElapsed or Reset replaces that value, so a callback
// that runs after such a replacement can recognise the tick as stale.
type Tick struct {
	Before float64
	After  float64
	Epoch  uint64
}

// Timer is a monotonically increasing elapsed-time counter.
//
// At most one ticking goroutine exists per Timer. Each tick adds the
// interval to the elapsed time and then calls OnTick with the elapsed
// seconds before and after the increment, so observers can detect a
// threshold crossing exactly once. Pause takes effect before the next tick
// and never interrupts a tick in progress.
type Timer struct {
	mu         sync.Mutex
	interval   time.Duration
	elapsed    float64
	running    bool
	generation uint64
	epoch      uint64
	stop       chan struct{}
	onTick     func(Tick)

	// tickMu keeps tick callbacks from running concurrently.
	tickMu sync.Mutex
}

// New creates a paused timer. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, onTick func(Tick)) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Timer{interval: interval, onTick: onTick}
}

// Interval returns the tick period.
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Elapsed returns the elapsed seconds.
func (t *Timer) Elapsed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Epoch returns the current elapsed-time epoch.
func (t *Timer) Epoch() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

// IsRunning reports whether the timer is ticking.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Resume starts ticking. It is a no-op if the timer is already running.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.generation++
	t.stop = make(chan struct{})
	go t.run(t.generation, t.stop)
}

// Pause stops ticking and preserves the elapsed time. It is idempotent.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseLocked()
}

func (t *Timer) pauseLocked() {
	if !t.running {
		return
	}
	t.running = false
	t.generation++
	close(t.stop)
	t.stop = nil
}

// Toggle pauses a running timer and resumes a paused one.
func (t *Timer) Toggle() {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()

	if running {
		t.Pause()
	} else {
		t.Resume()
	}
}

// Reset pauses the timer and zeroes the elapsed time.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseLocked()
	t.elapsed = 0
	t.epoch++
}

// SetElapsed replaces the elapsed time without changing whether the timer
// is running. Negative values are clamped to zero.
func (t *Timer) SetElapsed(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elapsed = math.Max(seconds, 0)
	t.epoch++
}

func (t *Timer) run(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.step(gen) {
				return
			}
		}
	}
}

// step applies one tick if gen is still the active generation.
func (t *Timer) step(gen uint64) bool {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	t.mu.Lock()
	if !t.running || t.generation != gen {
		t.mu.Unlock()
		return false
	}
	before := t.elapsed
	t.elapsed += t.interval.Seconds()
	tick := Tick{Before: before, After: t.elapsed, Epoch: t.epoch}
	cb := t.onTick
	t.mu.Unlock()

	if cb != nil {
		cb(tick)
	}
	return true
}

// Advance applies one tick synchronously, as if the interval had elapsed.
// It works whether or not the timer is running.
func (t *Timer) Advance() Tick {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	t.mu.Lock()
	before := t.elapsed
	t.elapsed += t.interval.Seconds()
	tick := Tick{Before: before, After: t.elapsed, Epoch: t.epoch}
	cb := t.onTick
	t.mu.Unlock()

	if cb != nil {
		cb(tick)
	}
	return tick
}

// FormatDuration renders seconds as MM:SS, or H:MM:SS from one hour.
// Fractions are truncated and negative values render as 00:00.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
