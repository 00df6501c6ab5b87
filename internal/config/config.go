// Package config loads settings from a YAML file, PRACTICE_* environment
// variables and built-in defaults, in increasing order of precedence:
// defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mschirtzinger/practicesync/internal/credential"
	"github.com/mschirtzinger/practicesync/internal/remote"
	"github.com/mschirtzinger/practicesync/internal/session"
)

// AppName names the config and cache directories.
const AppName = "practicesync"

// EnvPrefix prefixes environment overrides, e.g. PRACTICE_API_BASE_URL.
const EnvPrefix = "PRACTICE"

// Config is the full application configuration.
type Config struct {
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	Databases  DatabasesConfig  `mapstructure:"databases" yaml:"databases"`
	SchemaFile string           `mapstructure:"schema_file" yaml:"schema_file"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Credential CredentialConfig `mapstructure:"credential" yaml:"credential"`
	Practice   PracticeConfig   `mapstructure:"practice" yaml:"practice"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard" yaml:"dashboard"`
	Daemon     DaemonConfig     `mapstructure:"daemon" yaml:"daemon"`
}

type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	VersionHeader string        `mapstructure:"version_header" yaml:"version_header"`
	Version       string        `mapstructure:"version" yaml:"version"`
	PageSize      int           `mapstructure:"page_size" yaml:"page_size"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DatabasesConfig struct {
	Library  string `mapstructure:"library" yaml:"library"`
	Sessions string `mapstructure:"sessions" yaml:"sessions"`
	Logs     string `mapstructure:"logs" yaml:"logs"`
}

type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type CredentialConfig struct {
	File string `mapstructure:"file" yaml:"file"`
	Env  string `mapstructure:"env" yaml:"env"`
}

type PracticeConfig struct {
	DefaultPlannedMinutes int           `mapstructure:"default_planned_minutes" yaml:"default_planned_minutes"`
	GoalMinutes           int           `mapstructure:"goal_minutes" yaml:"goal_minutes"`
	TickInterval          time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
}

type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Quiet      bool   `mapstructure:"quiet" yaml:"quiet"`
}

type DashboardConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type DaemonConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// Dir returns the default configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", "."+AppName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func cacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return Dir()
}

// New returns a viper instance with every key defaulted and environment
// overrides enabled.
func New() *viper.Viper {
	v := viper.New()

	api := remote.DefaultConfig()
	v.SetDefault("api.base_url", api.BaseURL)
	v.SetDefault("api.version_header", api.VersionHeader)
	v.SetDefault("api.version", api.Version)
	v.SetDefault("api.page_size", api.PageSize)
	v.SetDefault("api.timeout", api.Timeout)

	v.SetDefault("databases.library", "")
	v.SetDefault("databases.sessions", "")
	v.SetDefault("databases.logs", "")
	v.SetDefault("schema_file", "")

	v.SetDefault("cache.path", filepath.Join(cacheDir(), "cache.db"))
	v.SetDefault("credential.file", filepath.Join(Dir(), "token"))
	v.SetDefault("credential.env", "PRACTICE_TOKEN")

	practice := session.DefaultConfig()
	v.SetDefault("practice.default_planned_minutes", practice.DefaultPlannedMinutes)
	v.SetDefault("practice.goal_minutes", practice.GoalMinutes)
	v.SetDefault("practice.tick_interval", practice.TickInterval)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.quiet", false)

	v.SetDefault("dashboard.port", 0)
	v.SetDefault("daemon.refresh_interval", 5*time.Minute)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path into v and decodes the result. An
// empty path tries DefaultPath; a missing default file is not an error,
// but a missing explicit file is.
func Load(v *viper.Viper, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case explicit:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.PageSize < 1 || c.API.PageSize > 100 {
		errs = append(errs, fmt.Errorf("api.page_size must be 1-100, got %d", c.API.PageSize))
	}
	if c.Practice.DefaultPlannedMinutes <= 0 {
		errs = append(errs, errors.New("practice.default_planned_minutes must be positive"))
	}
	if c.Practice.TickInterval <= 0 {
		errs = append(errs, errors.New("practice.tick_interval must be positive"))
	}
	if c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required"))
	}
	return errors.Join(errs...)
}

// RequireDatabases reports missing collection ids. Commands that only read
// the cache can run without them.
func (c *Config) RequireDatabases() error {
	var missing []string
	if c.Databases.Library == "" {
		missing = append(missing, "databases.library")
	}
	if c.Databases.Sessions == "" {
		missing = append(missing, "databases.sessions")
	}
	if c.Databases.Logs == "" {
		missing = append(missing, "databases.logs")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Remote builds the client configuration, loading the schema file when set.
func (c *Config) Remote() (remote.Config, error) {
	rc := remote.DefaultConfig()
	rc.BaseURL = c.API.BaseURL
	rc.VersionHeader = c.API.VersionHeader
	rc.Version = c.API.Version
	rc.PageSize = c.API.PageSize
	rc.Timeout = c.API.Timeout
	rc.Databases = remote.Databases{
		Library:  c.Databases.Library,
		Sessions: c.Databases.Sessions,
		Logs:     c.Databases.Logs,
	}
	if c.SchemaFile != "" {
		schema, err := remote.LoadSchemaFile(c.SchemaFile)
		if err != nil {
			return remote.Config{}, err
		}
		rc.Schema = schema
	}
	return rc, nil
}

// Session builds the state machine configuration.
func (c *Config) Session() session.Config {
	sc := session.DefaultConfig()
	sc.DefaultPlannedMinutes = c.Practice.DefaultPlannedMinutes
	sc.GoalMinutes = c.Practice.GoalMinutes
	sc.TickInterval = c.Practice.TickInterval
	return sc
}

// CredentialStore returns the file-backed credential store.
func (c *Config) CredentialStore() *credential.FileStore {
	return credential.NewFileStore(c.Credential.File)
}

// Credentials returns the provider chain: environment first, then file.
func (c *Config) Credentials() credential.Provider {
	chain := credential.Chain{}
	if c.Credential.Env != "" {
		chain = append(chain, credential.EnvProvider{Name: c.Credential.Env})
	}
	return append(chain, c.CredentialStore())
}
