// Package mocks provides testify mocks for the reconciliation engine's
// collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mschirtzinger/practicesync/internal/model"
	"github.com/mschirtzinger/practicesync/internal/remote"
)

// Remote is a mock of the remote document API.
type Remote struct {
	mock.Mock
}

func (m *Remote) FetchLibrary(ctx context.Context) ([]model.LibraryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LibraryItem), args.Error(1)
}

func (m *Remote) FetchSessions(ctx context.Context) ([]model.PracticeSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PracticeSession), args.Error(1)
}

func (m *Remote) FetchLogs(ctx context.Context, sessionID string) ([]model.PracticeLog, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PracticeLog), args.Error(1)
}

func (m *Remote) CreateSession(ctx context.Context, name, isoDate string, goalMinutes int) (model.PracticeSession, error) {
	args := m.Called(ctx, name, isoDate, goalMinutes)
	return args.Get(0).(model.PracticeSession), args.Error(1)
}

func (m *Remote) CreateLog(ctx context.Context, in remote.LogCreate) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *Remote) UpdateLog(ctx context.Context, logID string, patch remote.LogPatch) error {
	args := m.Called(ctx, logID, patch)
	return args.Error(0)
}

func (m *Remote) DeleteLog(ctx context.Context, logID string) error {
	args := m.Called(ctx, logID)
	return args.Error(0)
}

// Cache is a mock of the local cache store.
type Cache struct {
	mock.Mock
}

func (m *Cache) LoadLibraryItems(ctx context.Context) []model.LibraryItem {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return []model.LibraryItem{}
	}
	return args.Get(0).([]model.LibraryItem)
}

func (m *Cache) LoadSessions(ctx context.Context) []model.PracticeSession {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return []model.PracticeSession{}
	}
	return args.Get(0).([]model.PracticeSession)
}

func (m *Cache) LoadLogs(ctx context.Context, sessionID string) []model.PracticeLog {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return []model.PracticeLog{}
	}
	return args.Get(0).([]model.PracticeLog)
}

func (m *Cache) SaveLibraryItems(ctx context.Context, items []model.LibraryItem) {
	m.Called(ctx, items)
}

func (m *Cache) SaveSessions(ctx context.Context, sessions []model.PracticeSession) {
	m.Called(ctx, sessions)
}

func (m *Cache) UpsertSession(ctx context.Context, session model.PracticeSession) {
	m.Called(ctx, session)
}

func (m *Cache) SaveLogs(ctx context.Context, sessionID string, logs []model.PracticeLog) {
	m.Called(ctx, sessionID, logs)
}

func (m *Cache) UpdateLog(ctx context.Context, log model.PracticeLog) {
	m.Called(ctx, log)
}

// Notifier records overtime alerts.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Overtime(item model.SelectedItem) {
	m.Called(item)
}
