package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/config"
	"github.com/phayzeee/Offline-First-Architecture/internal/connectivity"
	"github.com/phayzeee/Offline-First-Architecture/internal/daemon"
	"github.com/phayzeee/Offline-First-Architecture/internal/engine"
	"github.com/phayzeee/Offline-First-Architecture/internal/logging"
	"github.com/phayzeee/Offline-First-Architecture/internal/remote"
	"github.com/phayzeee/Offline-First-Architecture/internal/store"
	syncpkg "github.com/phayzeee/Offline-First-Architecture/internal/sync"
)

// app bundles the wired components a command needs.
type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	daemon *daemon.Daemon
	conn   *connectivity.Monitor

	logs *logging.Sink
}

// openApp builds the full component stack from configuration. The
// daemon is created but not started; one-shot commands run passes
// synchronously, the daemon command starts the loop.
func openApp(cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Without a remote the app runs purely local: the monitor stays
	// offline and every change waits in a pending state.
	conn := connectivity.NewMonitor(cfg.RemoteURL != "")

	var gateway remote.Gateway = remote.NewHTTPGateway(cfg.RemoteURL, nil)

	// One sink for every component; a configured log file gets a single
	// rotator instead of one per logger.
	logs, err := logging.NewSink(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	rec := syncpkg.New(st, gateway, conn.Online, logs.Logger("[sync] "))

	dcfg := &daemon.Config{
		SyncInterval: cfg.SyncInterval,
		RetryBackoff: cfg.RetryBackoff,
		MaxAttempts:  cfg.MaxAttempts,
		Logger:       logs.Logger("[daemon] "),
	}
	d, err := daemon.NewWithConfig(st, rec, conn, dcfg)
	if err != nil {
		logs.Close()
		st.Close()
		return nil, err
	}

	eng, err := engine.New(st, d, conn, logs.Logger("[engine] "))
	if err != nil {
		logs.Close()
		st.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		store:  st,
		engine: eng,
		daemon: d,
		conn:   conn,
		logs:   logs,
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	if a.logs != nil {
		a.logs.Close()
	}
	a.store.Close()
}

// probeConnectivity checks the configured probe URL once and updates
// the monitor. One-shot commands call this before attempting a pass so
// a dead network surfaces as "offline" rather than a failed sync.
func (a *app) probeConnectivity() {
	if a.cfg.ProbeURL == "" || a.cfg.RemoteURL == "" {
		return
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Head(a.cfg.ProbeURL)
	if err != nil {
		a.conn.Set(false)
		return
	}
	resp.Body.Close()
	a.conn.Set(resp.StatusCode < 500)
}

// mustOpenApp wraps openApp with CLI error handling.
func mustOpenApp() *app {
	a, err := openApp(loadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}
