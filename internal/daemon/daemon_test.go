package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mschirtzinger/practicesync/internal/credential"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

func testConfig(refresh time.Duration) *Config {
	return &Config{
		RefreshInterval:  refresh,
		DebounceInterval: 20 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func runDaemon(t *testing.T, d *Daemon) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	return func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("Expected error for nil refresher")
	}

	d, err := New(&countingRefresher{}, nil, &Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.config.RefreshInterval != DefaultConfig().RefreshInterval {
		t.Errorf("Expected default refresh interval, got %v", d.config.RefreshInterval)
	}
	if d.config.Logger == nil {
		t.Error("Expected default logger")
	}
}

func TestPeriodicRefresh(t *testing.T) {
	r := &countingRefresher{}
	d, err := New(r, nil, testConfig(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stop := runDaemon(t, d)
	waitFor(t, "three refreshes", func() bool { return r.calls.Load() >= 3 })
	stop()

	if err := d.Stop(); err != nil {
		t.Errorf("Second Stop returned error: %v", err)
	}
	stats := d.Stats()
	if stats.Refreshes < 3 || stats.Failures != 0 || !stats.LoggedIn {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestInitialFailureIsNotFatal(t *testing.T) {
	r := &countingRefresher{err: errors.New("offline")}
	d, err := New(r, nil, testConfig(time.Hour))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stop := runDaemon(t, d)
	waitFor(t, "initial refresh", func() bool { return d.Stats().Refreshes == 1 })
	stop()

	stats := d.Stats()
	if stats.Failures != 1 || stats.LastError != "offline" || stats.LoggedIn {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestLoginTriggersRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	watcher, err := credential.NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	r := &countingRefresher{}
	d, err := New(r, watcher, testConfig(time.Hour))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stop := runDaemon(t, d)
	defer stop()
	waitFor(t, "watcher start", func() bool { return r.calls.Load() == 1 && watcher.IsRunning() })

	if err := os.WriteFile(path, []byte("secret"), 0o600); err != nil {
		t.Fatalf("Failed to write token: %v", err)
	}
	waitFor(t, "refresh after login", func() bool { return r.calls.Load() >= 2 })

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove token: %v", err)
	}
	waitFor(t, "logout", func() bool { return !d.Stats().LoggedIn })
}
