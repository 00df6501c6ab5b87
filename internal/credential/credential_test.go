package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "token"))

	_, err := store.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	require.NoError(t, store.Save("  secret_abc \n"))
	token, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret_abc", token)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, store.Revoke())
	_, err = store.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	assert.NoError(t, store.Revoke(), "revoking twice is fine")
}

func TestFileStore_SaveRejectsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token"))
	assert.Error(t, store.Save("   "))
}

func TestFileStore_UnreadableIsStorageUnavailable(t *testing.T) {
	// A directory at the token path cannot be read as a file.
	dir := t.TempDir()
	store := NewFileStore(dir)

	_, err := store.Token()
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestChain(t *testing.T) {
	broken := providerFunc(func() (string, error) { return "", ErrStorageUnavailable })

	token, err := Chain{Static(""), Static("b")}.Token()
	require.NoError(t, err)
	assert.Equal(t, "b", token)

	_, err = Chain{Static(""), nil}.Token()
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = Chain{broken, Static("b")}.Token()
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("PRACTICE_TEST_TOKEN", "env-token")

	token, err := EnvProvider{Name: "PRACTICE_TEST_TOKEN"}.Token()
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)

	_, err = EnvProvider{Name: "PRACTICE_TEST_TOKEN_UNSET"}.Token()
	assert.True(t, errors.Is(err, ErrNoCredential))
}

func TestWatcher_ReportsLoginAndLogout(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "token"))

	w, err := NewWatcher(store.Path())
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(), "second start fails")

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0600))
	require.NoError(t, store.Save("tok"))

	ev := waitEvent(t, w)
	assert.Equal(t, store.Path(), ev.Path)
	assert.NotEqual(t, OpDelete, ev.Op)

	drain(w)
	require.NoError(t, store.Revoke())
	for {
		ev = waitEvent(t, w)
		if ev.Op == OpDelete {
			break
		}
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}

func TestEventOpString(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "modify", OpModify.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "unknown", EventOp(42).String())
}

type providerFunc func() (string, error)

func (f providerFunc) Token() (string, error) { return f() }

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for credential event")
		return Event{}
	}
}

func drain(w *Watcher) {
	for {
		select {
		case <-w.Events():
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}
