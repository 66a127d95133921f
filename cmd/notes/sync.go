package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
	"github.com/phayzeee/Offline-First-Architecture/internal/remote"
	"github.com/phayzeee/Offline-First-Architecture/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync pass now",
	Long: `Push all pending local changes to the remote and pull remote changes
down. Equivalent to what the background daemon does, run once in the
foreground.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()

		if a.cfg.RemoteURL == "" {
			fmt.Fprintf(os.Stderr, "Error: no remote_url configured\n")
			os.Exit(1)
		}

		a.probeConnectivity()

		fmt.Printf("%s Syncing with %s...\n", ui.RenderAccent("⇅"), a.cfg.RemoteURL)
		start := time.Now()

		synced, err := a.daemon.Reconcile(context.Background())
		if err != nil {
			if errors.Is(err, remote.ErrNoConnection) {
				fmt.Printf("%s Offline; local changes are queued\n", ui.RenderWarn("⚠"))
				return
			}
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		elapsed := time.Since(start)
		fmt.Printf("%s Sync complete in %v (%d pushed)\n",
			ui.RenderPass("✓"), elapsed.Round(time.Millisecond), synced)

		reportFailures(a)
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry failed changes",
	Long: `Re-queue all notes whose last push failed and run a sync pass. Each
note retries the operation it originally needed: a failed deletion is
deleted again, not resurrected.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()
		ctx := context.Background()

		failed := countByState(a, note.StateSyncFailed)
		if failed == 0 {
			fmt.Println("Nothing to retry.")
			return
		}

		a.probeConnectivity()

		if err := a.daemon.RetryFailed(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error re-queuing failed notes: %v\n", err)
			os.Exit(1)
		}

		synced, err := a.daemon.Reconcile(ctx)
		if err != nil {
			if errors.Is(err, remote.ErrNoConnection) {
				fmt.Printf("%s Offline; %d note(s) re-queued for the next sync\n",
					ui.RenderWarn("⚠"), failed)
				return
			}
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Retried %d note(s), %d pushed\n", ui.RenderPass("✓"), failed, synced)
		reportFailures(a)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show the derived sync status and a breakdown of note states.

Status precedence: offline > syncing > pending > failed > idle.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.close()

		a.probeConnectivity()
		state := a.daemon.State()

		fmt.Printf("\nStatus: %s\n", ui.RenderStatus(string(state.Status)))
		if state.LastError != "" {
			fmt.Printf("Last error: %s\n", ui.RenderErr(state.LastError))
		}

		total, err := a.store.Count()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading store: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Notes: %d\n", total)
		fmt.Printf("Pending: %d\n", state.PendingCount)
		if failed := countByState(a, note.StateSyncFailed); failed > 0 {
			fmt.Printf("Failed: %s (run 'notes retry')\n",
				ui.RenderErr(fmt.Sprintf("%d", failed)))
		}
		if a.cfg.RemoteURL != "" {
			fmt.Printf("Remote: %s\n", a.cfg.RemoteURL)
		} else {
			fmt.Printf("Remote: %s\n", ui.RenderDim("not configured (local only)"))
		}
		fmt.Println()
	},
}

// reportFailures prints a warning when notes failed during the pass.
func reportFailures(a *app) {
	if failed := countByState(a, note.StateSyncFailed); failed > 0 {
		fmt.Printf("%s %d note(s) failed to sync; run 'notes retry'\n",
			ui.RenderWarn("⚠"), failed)
	}
}

func countByState(a *app, state note.SyncState) int {
	pending, err := a.store.Pending()
	if err != nil {
		return 0
	}
	count := 0
	for _, n := range pending {
		if n.SyncState == state {
			count++
		}
	}
	return count
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(statusCmd)
}
