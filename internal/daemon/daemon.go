// Package daemon provides the sync coordinator that schedules
// reconciliation passes and derives the observable sync status.
//
// The daemon:
// 1. Runs at most one reconciliation pass at a time (single-flight)
// 2. Coalesces concurrent sync requests instead of queueing duplicates
// 3. Defers passes while offline and resumes when connectivity returns
// 4. Retries unexpected pass failures with bounded exponential backoff
// 5. Publishes a derived status feed for the presentation layer
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/connectivity"
	"github.com/phayzeee/Offline-First-Architecture/internal/live"
	"github.com/phayzeee/Offline-First-Architecture/internal/remote"
	"github.com/phayzeee/Offline-First-Architecture/internal/store"
	syncpkg "github.com/phayzeee/Offline-First-Architecture/internal/sync"
)

// Status is the single derived sync state the presentation layer renders.
type Status string

const (
	// StatusIdle means everything is synced and nothing is running.
	StatusIdle Status = "idle"
	// StatusSyncing means a reconciliation pass is in flight.
	StatusSyncing Status = "syncing"
	// StatusPending means local changes await the next pass.
	StatusPending Status = "pending"
	// StatusFailed means the last pass failed and nothing newer is pending.
	StatusFailed Status = "failed"
	// StatusOffline means no connectivity; writes still succeed locally.
	StatusOffline Status = "offline"
)

// State is the status snapshot published to watchers.
type State struct {
	Status Status `json:"status"`
	// PendingCount is the number of notes with unpushed local changes.
	PendingCount int `json:"pending_count"`
	// LastError is the most recent pass-level failure, if any.
	LastError string `json:"last_error,omitempty"`
}

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often the daemon looks for leftover pending
	// work and schedules a pass for it.
	SyncInterval time.Duration

	// RetryBackoff is the base delay before retrying a failed pass.
	// Each consecutive failure doubles it.
	RetryBackoff time.Duration

	// MaxAttempts bounds consecutive retries of a failing pass. Once
	// exhausted the pass is abandoned until the next explicit trigger.
	MaxAttempts int

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval: 30 * time.Second,
		RetryBackoff: 30 * time.Second,
		MaxAttempts:  3,
		Logger:       log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates reconciliation scheduling and status derivation.
type Daemon struct {
	store      *store.Store
	reconciler syncpkg.Reconciler
	conn       *connectivity.Monitor
	config     *Config

	status *live.Feed[State]

	// trigger carries at most one queued pass request; a second request
	// while one is queued is coalesced away.
	trigger chan struct{}

	mu           sync.Mutex
	inFlight     bool
	deferred     bool // a pass is waiting for connectivity
	attempts     int  // consecutive pass-level failures
	retryPending bool // a backoff timer will fire the next attempt
	retryTimer   *time.Timer
	abandoned    bool // retry bound hit; wait for an explicit trigger
	lastErr      string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance with default configuration.
//
// The daemon requires:
//   - st: the local note store (schema initialized)
//   - rec: the reconciler to run
//   - conn: the connectivity monitor
//
// Use Start() to begin scheduling.
func New(st *store.Store, rec syncpkg.Reconciler, conn *connectivity.Monitor) (*Daemon, error) {
	return NewWithConfig(st, rec, conn, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(st *store.Store, rec syncpkg.Reconciler, conn *connectivity.Monitor, config *Config) (*Daemon, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if rec == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if conn == nil {
		return nil, fmt.Errorf("connectivity monitor cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	return &Daemon{
		store:      st,
		reconciler: rec,
		conn:       conn,
		config:     config,
		status:     live.NewFeed[State](),
		trigger:    make(chan struct{}, 1),
	}, nil
}

// Start begins the daemon's scheduling loop in the background.
func (d *Daemon) Start(ctx context.Context) error {
	if d.ctx != nil {
		return fmt.Errorf("daemon already started")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.publishStatus()

	d.wg.Add(1)
	go d.run()

	d.config.Logger.Println("Daemon started")
	return nil
}

// Stop gracefully shuts down the daemon. A pass already executing runs
// to completion; only queued passes are dropped.
func (d *Daemon) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()

	d.mu.Lock()
	if d.retryTimer != nil {
		d.retryTimer.Stop()
		d.retryTimer = nil
		d.retryPending = false
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
}

// ScheduleSync requests a reconciliation pass once constraints are met.
// Coalesced: if a pass is already queued or a backoff retry is armed,
// this is a no-op.
func (d *Daemon) ScheduleSync() {
	d.mu.Lock()
	if d.retryPending {
		d.mu.Unlock()
		return
	}
	d.abandoned = false
	d.mu.Unlock()

	d.fire()
}

// RequestSyncNow replaces any queued-but-not-started pass and runs as
// soon as connectivity allows. A pass already executing is unaffected;
// the request runs after it finishes. Any armed backoff is cancelled.
func (d *Daemon) RequestSyncNow() {
	d.mu.Lock()
	if d.retryTimer != nil {
		d.retryTimer.Stop()
		d.retryTimer = nil
	}
	d.retryPending = false
	d.attempts = 0
	d.abandoned = false
	d.mu.Unlock()

	d.fire()
}

// RetryFailed re-derives all sync_failed notes into their pending states
// and requests an immediate pass.
func (d *Daemon) RetryFailed(ctx context.Context) error {
	if err := d.reconciler.RetryFailed(ctx); err != nil {
		return err
	}
	d.RequestSyncNow()
	return nil
}

// Reconcile runs a single pass synchronously, bypassing the scheduler.
// Intended for one-shot CLI use; the daemon loop does not need it.
func (d *Daemon) Reconcile(ctx context.Context) (int, error) {
	return d.reconciler.Reconcile(ctx)
}

// State returns the current derived status snapshot.
func (d *Daemon) State() State {
	if s, ok := d.status.Latest(); ok {
		return s
	}
	return d.computeState()
}

// WatchStatus returns a live feed of status snapshots.
func (d *Daemon) WatchStatus() (<-chan State, func()) {
	return d.status.Subscribe()
}

// fire queues a pass request, coalescing with any already queued.
func (d *Daemon) fire() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// run is the scheduling loop. It is the only goroutine that executes
// passes, which gives the single-flight guarantee for free.
func (d *Daemon) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	connCh, cancelConn := d.conn.Watch()
	defer cancelConn()
	pendCh, cancelPend := d.store.WatchPendingCount()
	defer cancelPend()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-d.trigger:
			d.runPass()

		case <-ticker.C:
			d.mu.Lock()
			blocked := d.retryPending || d.abandoned
			d.mu.Unlock()
			if blocked {
				continue
			}
			if count, err := d.store.PendingCount(); err == nil && count > 0 {
				d.runPass()
			}

		case online, ok := <-connCh:
			if !ok {
				return
			}
			if online && d.takeDeferred() {
				d.runPass()
			} else {
				d.publishStatus()
			}

		case _, ok := <-pendCh:
			if !ok {
				return
			}
			d.publishStatus()
		}
	}
}

// takeDeferred consumes the deferred flag, reporting whether a pass was
// waiting for connectivity.
func (d *Daemon) takeDeferred() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.deferred {
		return false
	}
	d.deferred = false
	return true
}

// runPass executes one reconciliation pass and updates retry state.
func (d *Daemon) runPass() {
	if !d.conn.Online() {
		d.mu.Lock()
		d.deferred = true
		d.mu.Unlock()
		d.publishStatus()
		return
	}

	d.mu.Lock()
	d.inFlight = true
	d.mu.Unlock()
	d.publishStatus()

	synced, err := d.reconciler.Reconcile(d.ctx)

	d.mu.Lock()
	d.inFlight = false
	switch {
	case err == nil:
		d.attempts = 0
		d.lastErr = ""
		d.config.Logger.Printf("Sync pass complete: synced=%d", synced)

	case errors.Is(err, remote.ErrNoConnection):
		// Not an error: rescheduled when connectivity resumes.
		d.deferred = true

	case errors.Is(err, context.Canceled):
		// Shutting down.

	default:
		d.attempts++
		d.lastErr = err.Error()
		if d.attempts >= d.config.MaxAttempts {
			d.abandoned = true
			d.attempts = 0
			d.config.Logger.Printf("Sync abandoned after %d attempts: %v", d.config.MaxAttempts, err)
		} else {
			delay := d.config.RetryBackoff << (d.attempts - 1)
			d.retryPending = true
			d.retryTimer = time.AfterFunc(delay, d.fireRetry)
			d.config.Logger.Printf("Sync pass failed (attempt %d/%d), retrying in %s: %v",
				d.attempts, d.config.MaxAttempts, delay, err)
		}
	}
	d.mu.Unlock()

	d.publishStatus()
}

// fireRetry is the backoff timer callback.
func (d *Daemon) fireRetry() {
	d.mu.Lock()
	d.retryPending = false
	d.retryTimer = nil
	d.mu.Unlock()
	d.fire()
}

// computeState derives the status snapshot with the documented
// precedence: offline > syncing > pending > failed > idle.
func (d *Daemon) computeState() State {
	count, err := d.store.PendingCount()
	if err != nil {
		count = 0
	}

	d.mu.Lock()
	inFlight := d.inFlight
	failed := d.abandoned || d.lastErr != ""
	lastErr := d.lastErr
	d.mu.Unlock()

	s := State{PendingCount: count, LastError: lastErr}
	switch {
	case !d.conn.Online():
		s.Status = StatusOffline
	case inFlight:
		s.Status = StatusSyncing
	case count > 0:
		s.Status = StatusPending
	case failed:
		s.Status = StatusFailed
	default:
		s.Status = StatusIdle
	}
	return s
}

// publishStatus pushes a fresh status snapshot to watchers.
func (d *Daemon) publishStatus() {
	d.status.Publish(d.computeState())
}
