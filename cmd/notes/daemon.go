package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phayzeee/Offline-First-Architecture/internal/config"
	"github.com/phayzeee/Offline-First-Architecture/internal/connectivity"
	"github.com/phayzeee/Offline-First-Architecture/internal/dashboard"
	"github.com/phayzeee/Offline-First-Architecture/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon (foreground)",
	Long: `Run the background sync daemon in the foreground.

The daemon:
  1. Probes connectivity and defers sync while offline
  2. Pushes pending local changes and pulls remote changes
  3. Retries failed passes with exponential backoff
  4. Optionally serves a WebSocket dashboard of live state

The config file is watched; edits apply on the next daemon restart
except where noted. Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()

		if a.cfg.RemoteURL == "" {
			fmt.Fprintf(os.Stderr, "Error: no remote_url configured, nothing to sync\n")
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Connectivity probing drives the monitor the daemon watches.
		var prober *connectivity.Prober
		if a.cfg.ProbeURL != "" {
			prober = connectivity.NewProber(a.conn, a.cfg.ProbeURL, a.cfg.ProbeInterval, a.logs.Logger("[probe] "))
			prober.Start(ctx)
			defer prober.Stop()
		}

		if err := a.daemon.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting daemon: %v\n", err)
			os.Exit(1)
		}
		defer a.daemon.Stop()

		// Optional live dashboard.
		if a.cfg.DashboardAddr != "" {
			dashLogger := a.logs.Logger("[dashboard] ")
			server := dashboard.NewServer(&dashboard.Config{
				Addr:   a.cfg.DashboardAddr,
				Logger: dashLogger,
			})
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer server.Stop()

			handler := dashboard.NewHandler(server, a.engine, dashLogger)
			handler.Start()
			defer handler.Stop()

			fmt.Printf("   Dashboard: http://%s (ws://%s/ws)\n",
				server.GetAddr(), server.GetAddr())
		}

		// Watch the config file so interval changes take effect without
		// a restart.
		if configPath != "" {
			if watcher, err := config.NewWatcher(configPath); err == nil {
				if err := watcher.Start(); err == nil {
					defer watcher.Stop()
					go watchConfigUpdates(ctx, watcher)
				}
			}
		}

		// An initial pass picks up anything queued while the daemon
		// was not running.
		a.daemon.ScheduleSync()

		fmt.Printf("%s Sync daemon running\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Remote: %s\n", a.cfg.RemoteURL)
		fmt.Printf("   Database: %s\n", a.cfg.DBPath)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		<-ctx.Done()
		fmt.Println("\nShutting down...")
	},
}

// watchConfigUpdates logs reloaded configs. Live reconfiguration of a
// running daemon is limited to logging the change; intervals apply on
// the next start.
func watchConfigUpdates(ctx context.Context, watcher *config.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-watcher.Updates():
			if !ok {
				return
			}
			fmt.Printf("Config reloaded (sync_interval=%s, retry_backoff=%s); restart to apply\n",
				cfg.SyncInterval, cfg.RetryBackoff)
		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Config reload failed: %v\n", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
