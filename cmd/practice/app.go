package main

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/practicesync/internal/cache"
	"github.com/mschirtzinger/practicesync/internal/config"
	"github.com/mschirtzinger/practicesync/internal/notify"
	"github.com/mschirtzinger/practicesync/internal/reconcile"
	"github.com/mschirtzinger/practicesync/internal/remote"
	"github.com/mschirtzinger/practicesync/internal/session"
)

// app wires the components for one command invocation.
type app struct {
	cfg       *config.Config
	logOut    io.Writer
	logCloser io.Closer

	store  *cache.Store
	client *remote.Client
	engine *reconcile.Engine
	broker *notify.Broker
	ctrl   *session.Controller
}

// logWriter routes component logs to a rotating file, stderr, or nowhere.
func logWriter(c config.LogConfig) (io.Writer, io.Closer) {
	switch {
	case c.Quiet:
		return io.Discard, nil
	case c.File != "":
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
		}
		return lj, lj
	default:
		return os.Stderr, nil
	}
}

// openCache opens only the local cache.
func openCache(c *config.Config) (*app, error) {
	a := &app{cfg: c}
	a.logOut, a.logCloser = logWriter(c.Log)

	store, err := cache.Open(c.Cache.Path, a.logger("cache"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	return a, nil
}

// openApp opens the cache and connects the remote client, engine and
// session controller.
func openApp(c *config.Config, notifier notify.Notifier) (*app, error) {
	if err := c.RequireDatabases(); err != nil {
		return nil, err
	}
	rc, err := c.Remote()
	if err != nil {
		return nil, err
	}

	a, err := openCache(c)
	if err != nil {
		return nil, err
	}

	a.client = remote.New(rc, c.Credentials(), a.logger("remote"))
	a.engine = reconcile.New(a.client, a.store, a.logger("reconcile"))
	a.broker = notify.NewBroker()
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: a.logger("notify")}
	}
	a.ctrl = session.New(a.engine, notifier, a.broker, c.Session(), a.logger("session"))
	return a, nil
}

func (a *app) logger(component string) *log.Logger {
	return log.New(a.logOut, "["+component+"] ", log.LstdFlags)
}

// Close releases everything the app opened.
func (a *app) Close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.broker != nil {
		a.broker.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
