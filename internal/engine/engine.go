// Package engine is the application-facing facade over the note store,
// the sync daemon and the connectivity monitor. The presentation layer
// (CLI, dashboard) talks only to this package.
//
// Every write goes to the local store first and returns as soon as the
// store commits; synchronization is scheduled in the background and
// never blocks the caller.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/phayzeee/Offline-First-Architecture/internal/connectivity"
	"github.com/phayzeee/Offline-First-Architecture/internal/daemon"
	"github.com/phayzeee/Offline-First-Architecture/internal/note"
	"github.com/phayzeee/Offline-First-Architecture/internal/store"
)

// ErrNoteNotFound is returned when an operation names an unknown note.
var ErrNoteNotFound = errors.New("note not found")

// ErrNoteDeleted is returned when editing a note whose deletion is
// pending. The deletion wins; the edit is rejected.
var ErrNoteDeleted = errors.New("note is pending deletion")

// Engine coordinates local writes with background synchronization.
type Engine struct {
	store  *store.Store
	daemon *daemon.Daemon
	conn   *connectivity.Monitor
	logger *log.Logger
}

// New creates an engine over an opened store, a started daemon and the
// connectivity monitor the daemon observes.
func New(st *store.Store, d *daemon.Daemon, conn *connectivity.Monitor, logger *log.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if d == nil {
		return nil, fmt.Errorf("daemon cannot be nil")
	}
	if conn == nil {
		return nil, fmt.Errorf("connectivity monitor cannot be nil")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Engine{store: st, daemon: d, conn: conn, logger: logger}, nil
}

// CreateNote stores a new note locally and schedules a push. The note
// is immediately visible to readers regardless of connectivity.
func (e *Engine) CreateNote(ctx context.Context, title, body string) (*note.Note, error) {
	n := &note.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		SyncState: note.StatePendingCreate,
	}
	n.SetDefaults()
	if err := e.store.PutContext(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	e.daemon.ScheduleSync()
	return n, nil
}

// EditNote applies new content to an existing note and schedules a
// push. Editing a note that is pending deletion is rejected; editing a
// note that previously failed to sync folds the edit into a fresh
// pending change.
func (e *Engine) EditNote(ctx context.Context, id, title, body string) (*note.Note, error) {
	n, err := e.store.GetByIDContext(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	if n.SyncState == note.StatePendingDelete || n.Deleted {
		return nil, ErrNoteDeleted
	}

	n.Title = title
	n.Body = body
	n.SyncState = n.StateAfterEdit()
	n.Touch()
	if err := e.store.PutContext(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}
	e.daemon.ScheduleSync()
	return n, nil
}

// DeleteNote hides the note from normal listings immediately. A note
// the server has never seen is removed outright; anything else is kept
// as a tombstone until the deletion is confirmed remotely.
func (e *Engine) DeleteNote(ctx context.Context, id string) error {
	n, err := e.store.GetByIDContext(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoteNotFound
		}
		return fmt.Errorf("failed to load note: %w", err)
	}

	if n.ServerVersion == 0 {
		// Never pushed, so nothing remote to delete.
		if err := e.store.DeleteByIDContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}
		return nil
	}

	n.SyncState = note.StatePendingDelete
	n.Deleted = true
	n.Touch()
	if err := e.store.PutContext(ctx, n); err != nil {
		return fmt.Errorf("failed to mark note deleted: %w", err)
	}
	e.daemon.ScheduleSync()
	return nil
}

// GetNote returns a single note by id, including tombstoned ones.
func (e *Engine) GetNote(ctx context.Context, id string) (*note.Note, error) {
	n, err := e.store.GetByIDContext(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return n, nil
}

// Notes returns all notes visible to the user, newest edit first.
// Notes pending deletion are excluded.
func (e *Engine) Notes(ctx context.Context) ([]*note.Note, error) {
	return e.store.ListContext(ctx, true)
}

// Refresh requests an immediate reconciliation pass, pull included.
func (e *Engine) Refresh() {
	e.daemon.RequestSyncNow()
}

// Retry re-queues all failed notes and requests an immediate pass.
func (e *Engine) Retry(ctx context.Context) error {
	return e.daemon.RetryFailed(ctx)
}

// Status returns the current derived sync status snapshot.
func (e *Engine) Status() daemon.State {
	return e.daemon.State()
}

// WatchNotes streams the full visible note list after every change.
func (e *Engine) WatchNotes() (<-chan []*note.Note, func()) {
	return e.store.Watch()
}

// WatchNote streams a single note's state after every change.
func (e *Engine) WatchNote(id string) (<-chan *note.Note, func()) {
	return e.store.WatchByID(id)
}

// WatchStatus streams derived sync status snapshots.
func (e *Engine) WatchStatus() (<-chan daemon.State, func()) {
	return e.daemon.WatchStatus()
}

// WatchPendingCount streams the number of notes awaiting sync.
func (e *Engine) WatchPendingCount() (<-chan int, func()) {
	return e.store.WatchPendingCount()
}

// Online reports current connectivity.
func (e *Engine) Online() bool {
	return e.conn.Online()
}

// WatchOnline streams connectivity changes.
func (e *Engine) WatchOnline() (<-chan bool, func()) {
	return e.conn.Watch()
}
