package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("expected default sync_interval 30s, got %s", cfg.SyncInterval)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected default max_attempts 3, got %d", cfg.MaxAttempts)
	}
	if cfg.DBPath == "" {
		t.Error("expected a default db_path")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.yaml")
	content := `
db_path: /tmp/test-notes.db
remote_url: https://notes.example.com
sync_interval: 5s
retry_backoff: 2s
max_attempts: 5
dashboard_addr: "localhost:9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/test-notes.db" {
		t.Errorf("unexpected db_path: %s", cfg.DBPath)
	}
	if cfg.RemoteURL != "https://notes.example.com" {
		t.Errorf("unexpected remote_url: %s", cfg.RemoteURL)
	}
	if cfg.SyncInterval != 5*time.Second {
		t.Errorf("unexpected sync_interval: %s", cfg.SyncInterval)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("unexpected max_attempts: %d", cfg.MaxAttempts)
	}
	if cfg.DashboardAddr != "localhost:9090" {
		t.Errorf("unexpected dashboard_addr: %s", cfg.DashboardAddr)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load failed for missing file: %v", err)
	}
	if cfg.RetryBackoff != 30*time.Second {
		t.Errorf("expected default retry_backoff, got %s", cfg.RetryBackoff)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("NOTES_REMOTE_URL", "https://env.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RemoteURL != "https://env.example.com" {
		t.Errorf("expected env override, got %s", cfg.RemoteURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sync interval", func(c *Config) { c.SyncInterval = 0 }},
		{"negative backoff", func(c *Config) { c.RetryBackoff = -time.Second }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"zero probe interval", func(c *Config) { c.ProbeInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.yaml")
	if err := os.WriteFile(path, []byte("sync_interval: 10s\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("sync_interval: 42s\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-w.Updates():
		if cfg.SyncInterval != 42*time.Second {
			t.Errorf("expected reloaded sync_interval 42s, got %s", cfg.SyncInterval)
		}
	case err := <-w.Errors():
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.yaml")
	if err := os.WriteFile(path, []byte("sync_interval: 10s\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("max_attempts: 0\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-w.Updates():
		t.Fatalf("invalid config should not be emitted, got %+v", cfg)
	case <-w.Errors():
		// expected: the bad reload surfaces as an error
	case <-time.After(3 * time.Second):
		t.Fatal("no error observed for invalid reload")
	}
}
