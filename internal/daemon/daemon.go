// Package daemon keeps the local cache fresh in the background.
//
// The daemon:
//  1. Refreshes the library and sessions on startup
//  2. Refreshes them again on a fixed interval
//  3. Watches the credential file and refreshes shortly after a login
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mschirtzinger/practicesync/internal/credential"
)

// Refresher pulls remote collections into the local cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config holds configuration for the daemon.
type Config struct {
	// RefreshInterval is how often to pull from the remote
	RefreshInterval time.Duration

	// DebounceInterval is how long to wait after a credential change before
	// refreshing. Rapid changes are batched together.
	DebounceInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval:  5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Stats describes refresh activity.
type Stats struct {
	Refreshes   int       `json:"refreshes"`
	Failures    int       `json:"failures"`
	LastRefresh time.Time `json:"last_refresh"`
	LastError   string    `json:"last_error,omitempty"`
	LoggedIn    bool      `json:"logged_in"`
}

// Daemon orchestrates periodic and credential-triggered refreshes.
type Daemon struct {
	refresher Refresher
	watcher   *credential.Watcher
	config    *Config

	pendingAt time.Time
	pendingMu sync.Mutex

	refreshMu sync.Mutex
	statsMu   sync.Mutex
	stats     Stats

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a daemon. watcher may be nil, in which case logins are only
// picked up by the periodic refresh.
func New(refresher Refresher, watcher *credential.Watcher, config *Config) (*Daemon, error) {
	if refresher == nil {
		return nil, fmt.Errorf("refresher cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	def := DefaultConfig()
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = def.RefreshInterval
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = def.DebounceInterval
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		refresher: refresher,
		watcher:   watcher,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start runs the daemon. It blocks until ctx is cancelled or Stop is called.
//
// A failing initial refresh is logged, not returned: cached data stays
// usable offline and the next tick tries again.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.RefreshNow(ctx); err != nil {
		d.config.Logger.Printf("Initial refresh failed: %v", err)
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch credentials: %w", err)
		}
		d.wg.Add(1)
		go d.watchCredentials()
	}

	d.wg.Add(2)
	go d.refreshLoop()
	go d.processPending()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")
		d.cancel()
		if d.watcher != nil {
			err = d.watcher.Stop()
		}
		d.wg.Wait()
		d.config.Logger.Println("Daemon stopped")
	})
	return err
}

// RefreshNow refreshes immediately. Concurrent calls are serialized.
func (d *Daemon) RefreshNow(ctx context.Context) error {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	start := time.Now()
	err := d.refresher.Refresh(ctx)

	d.statsMu.Lock()
	d.stats.Refreshes++
	d.stats.LastRefresh = start
	if err != nil {
		d.stats.Failures++
		d.stats.LastError = err.Error()
	} else {
		d.stats.LastError = ""
		d.stats.LoggedIn = true
	}
	d.statsMu.Unlock()

	if err != nil {
		return err
	}
	d.config.Logger.Printf("Refresh complete in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// Stats returns a snapshot of refresh activity.
func (d *Daemon) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

func (d *Daemon) refreshLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.RefreshNow(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.config.Logger.Printf("Periodic refresh failed: %v", err)
			}
		}
	}
}

func (d *Daemon) watchCredentials() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case ev, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			d.config.Logger.Printf("Credential event: %s", ev.Op)
			if ev.Op == credential.OpDelete {
				d.statsMu.Lock()
				d.stats.LoggedIn = false
				d.statsMu.Unlock()
				continue
			}
			d.queueRefresh()

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) queueRefresh() {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	d.pendingAt = time.Now()
}

// processPending runs a queued refresh once it has been quiet for the
// debounce interval.
func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(max(d.config.DebounceInterval/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.pendingMu.Lock()
			due := !d.pendingAt.IsZero() && time.Since(d.pendingAt) >= d.config.DebounceInterval
			if due {
				d.pendingAt = time.Time{}
			}
			d.pendingMu.Unlock()

			if due {
				if err := d.RefreshNow(d.ctx); err != nil {
					d.config.Logger.Printf("Refresh after login failed: %v", err)
				}
			}
		}
	}
}
