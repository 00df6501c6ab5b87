package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/practicesync/internal/credential"
	"github.com/mschirtzinger/practicesync/internal/remote"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://api.notion.com/v1", cfg.API.BaseURL)
	assert.Equal(t, 100, cfg.API.PageSize)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Practice.DefaultPlannedMinutes)
	assert.Equal(t, 30, cfg.Practice.GoalMinutes)
	assert.Equal(t, 100*time.Millisecond, cfg.Practice.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.Daemon.RefreshInterval)
	assert.Equal(t, "PRACTICE_TOKEN", cfg.Credential.Env)
	assert.NotEmpty(t, cfg.Cache.Path)
	assert.Zero(t, cfg.Dashboard.Port)

	assert.ErrorContains(t, cfg.RequireDatabases(), "databases.library")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
api:
  page_size: 25
  timeout: 45s
databases:
  library: lib-db
  sessions: sess-db
  logs: log-db
practice:
  goal_minutes: 60
dashboard:
  port: 7777
`)
	t.Setenv("PRACTICE_API_PAGE_SIZE", "50")
	t.Setenv("PRACTICE_PRACTICE_DEFAULT_PLANNED_MINUTES", "7")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.API.PageSize, "environment wins over file")
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, 60, cfg.Practice.GoalMinutes)
	assert.Equal(t, 7, cfg.Practice.DefaultPlannedMinutes)
	assert.Equal(t, 7777, cfg.Dashboard.Port)
	require.NoError(t, cfg.RequireDatabases())

	sc := cfg.Session()
	assert.Equal(t, 60, sc.GoalMinutes)
	assert.Equal(t, 7, sc.DefaultPlannedMinutes)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeFile(t, "config.yaml", "api:\n  page_size: 500\npractice:\n  default_planned_minutes: 0\n")

	_, err := Load(New(), path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "api.page_size")
	assert.ErrorContains(t, err, "default_planned_minutes")
}

func TestRemote_LoadsSchemaFile(t *testing.T) {
	schema := writeFile(t, "schema.toml", "[logs.planned_minutes]\nname = \"Planned\"\n")
	cfg := &Config{
		API:        APIConfig{BaseURL: "http://localhost", PageSize: 10, Timeout: time.Second},
		Databases:  DatabasesConfig{Library: "a", Sessions: "b", Logs: "c"},
		SchemaFile: schema,
	}

	rc, err := cfg.Remote()
	require.NoError(t, err)
	assert.Equal(t, "c", rc.Databases.Logs)
	assert.Equal(t, 10, rc.PageSize)
	assert.Equal(t, "Planned", rc.Schema.Logs[remote.FieldPlannedMinutes].Name)
	assert.Equal(t, "Name", rc.Schema.Library[remote.FieldName].Name)

	cfg.SchemaFile = filepath.Join(t.TempDir(), "missing.toml")
	_, err = cfg.Remote()
	assert.Error(t, err)
}

func TestCredentials_EnvBeforeFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Credential: CredentialConfig{File: filepath.Join(dir, "token"), Env: "PRACTICE_TEST_TOKEN"}}

	_, err := cfg.Credentials().Token()
	assert.ErrorIs(t, err, credential.ErrNoCredential)

	require.NoError(t, cfg.CredentialStore().Save("from-file"))
	token, err := cfg.Credentials().Token()
	require.NoError(t, err)
	assert.Equal(t, "from-file", token)

	t.Setenv("PRACTICE_TEST_TOKEN", "from-env")
	token, err = cfg.Credentials().Token()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}
