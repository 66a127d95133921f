// Package config loads application configuration from a YAML file with
// environment overrides, and can watch the file for live changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all tunable settings for the notes application.
type Config struct {
	// DBPath is the SQLite database file. Defaults to notes.db in the
	// user's data directory.
	DBPath string `mapstructure:"db_path"`

	// RemoteURL is the base URL of the notes server. Empty means the
	// app runs purely local with no remote gateway.
	RemoteURL string `mapstructure:"remote_url"`

	// SyncInterval is how often the daemon sweeps for pending work.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// RetryBackoff is the base delay before retrying a failed sync
	// pass; it doubles on each consecutive failure.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// MaxAttempts bounds consecutive retries of a failing pass.
	MaxAttempts int `mapstructure:"max_attempts"`

	// ProbeURL is probed periodically to detect connectivity. Empty
	// disables probing; the app then assumes it is online.
	ProbeURL string `mapstructure:"probe_url"`

	// ProbeInterval is how often the connectivity probe runs.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// DashboardAddr is the listen address for the status dashboard.
	// Empty disables the dashboard.
	DashboardAddr string `mapstructure:"dashboard_addr"`

	// Logging
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:        defaultDBPath(),
		SyncInterval:  30 * time.Second,
		RetryBackoff:  30 * time.Second,
		MaxAttempts:   3,
		ProbeInterval: 15 * time.Second,
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		LogMaxAgeDays: 28,
	}
}

// Load reads configuration from the given YAML file, applying defaults
// and NOTES_* environment overrides. A missing file is not an error;
// defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix("NOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return nil, fmt.Errorf("failed to read config %s: %w", path, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive, got %s", c.SyncInterval)
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry_backoff must be positive, got %s", c.RetryBackoff)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive, got %s", c.ProbeInterval)
	}
	return nil
}

func applyDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("remote_url", d.RemoteURL)
	v.SetDefault("sync_interval", d.SyncInterval)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("probe_url", d.ProbeURL)
	v.SetDefault("probe_interval", d.ProbeInterval)
	v.SetDefault("dashboard_addr", d.DashboardAddr)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_max_size_mb", d.LogMaxSizeMB)
	v.SetDefault("log_max_backups", d.LogMaxBackups)
	v.SetDefault("log_max_age_days", d.LogMaxAgeDays)
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "notes.db"
	}
	return filepath.Join(dir, "notes", "notes.db")
}
