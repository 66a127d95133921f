package sync

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
	"github.com/phayzeee/Offline-First-Architecture/internal/remote"
	"github.com/phayzeee/Offline-First-Architecture/internal/store"
)

// reconciler implements the Reconciler interface.
type reconciler struct {
	store   *store.Store
	gateway remote.Gateway
	online  func() bool
	logger  *log.Logger
}

// New creates a new Reconciler instance.
//
// The store must be opened and have its schema created before passing to
// this function. The online probe is consulted once at the start of each
// pass; passing nil means "always connected".
//
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	st, err := store.Open(".notes/notes.db")
//	if err != nil {
//	    return err
//	}
//	if err := st.InitSchema(); err != nil {
//	    return err
//	}
//	rec := sync.New(st, gateway, monitor.Online, nil)
func New(st *store.Store, gateway remote.Gateway, online func() bool, logger *log.Logger) Reconciler {
	if online == nil {
		online = func() bool { return true }
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &reconciler{
		store:   st,
		gateway: gateway,
		online:  online,
		logger:  logger,
	}
}

// Reconcile implements Reconciler.Reconcile.
func (r *reconciler) Reconcile(ctx context.Context) (int, error) {
	if !r.online() {
		return 0, remote.ErrNoConnection
	}

	pending, err := r.store.PendingContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending notes: %w", err)
	}

	// Snapshot of ids pending before the push phase begins. The pull
	// phase must never touch these.
	pendingBefore := make(map[string]bool, len(pending))
	for _, n := range pending {
		pendingBefore[n.ID] = true
	}

	var synced, failed int
	for _, n := range pending {
		outcome, err := r.pushOne(ctx, n)
		if err != nil {
			return synced, err
		}
		switch outcome {
		case pushSynced:
			synced++
		case pushRejected:
			failed++
		}
	}

	r.logger.Printf("Push phase complete: synced=%d, failed=%d", synced, failed)

	if err := r.pull(ctx, pendingBefore); err != nil {
		return synced, err
	}

	return synced, nil
}

// pushOutcome classifies what happened to one note during the push phase.
type pushOutcome int

const (
	pushSkipped pushOutcome = iota
	pushSynced
	pushRejected
)

// pushOne pushes a single pending note to the remote.
//
// A rejected push flags the note sync_failed and the pass continues.
// A local store fault is returned and aborts the pass.
func (r *reconciler) pushOne(ctx context.Context, n *note.Note) (pushOutcome, error) {
	switch n.PushVerb() {
	case note.VerbCreate:
		accepted, err := r.gateway.Create(ctx, n)
		if err != nil {
			return pushRejected, r.markFailed(ctx, n, err)
		}
		return pushSynced, r.storeAccepted(ctx, accepted)

	case note.VerbUpdate:
		accepted, err := r.gateway.Update(ctx, n)
		if err != nil {
			return pushRejected, r.markFailed(ctx, n, err)
		}
		return pushSynced, r.storeAccepted(ctx, accepted)

	case note.VerbDelete:
		// A note the remote never accepted needs no network call.
		if n.ServerVersion == 0 {
			if err := r.store.DeleteByIDContext(ctx, n.ID); err != nil {
				return pushSkipped, fmt.Errorf("failed to remove unpushed note %s: %w", n.ID, err)
			}
			r.logger.Printf("Removed unpushed note locally: %s", n.ID)
			return pushSkipped, nil
		}

		if err := r.gateway.Delete(ctx, n.ID); err != nil {
			return pushRejected, r.markFailed(ctx, n, err)
		}
		if err := r.store.DeleteByIDContext(ctx, n.ID); err != nil {
			return pushSkipped, fmt.Errorf("failed to remove deleted note %s: %w", n.ID, err)
		}
		r.logger.Printf("Deleted note: %s", n.ID)
		return pushSynced, nil

	default:
		return pushSkipped, nil
	}
}

// storeAccepted persists the copy the remote accepted, tagged synced.
func (r *reconciler) storeAccepted(ctx context.Context, accepted *note.Note) error {
	c := accepted.Clone()
	c.SyncState = note.StateSynced
	c.Deleted = false
	if err := r.store.PutContext(ctx, c); err != nil {
		return fmt.Errorf("failed to store accepted note %s: %w", c.ID, err)
	}
	r.logger.Printf("Synced note: %s (version %d)", c.ID, c.ServerVersion)
	return nil
}

// markFailed flags a note sync_failed after a rejected push. The payload
// and delete tombstone are preserved for retry. A local store fault is
// returned; the remote error itself is only logged.
func (r *reconciler) markFailed(ctx context.Context, n *note.Note, cause error) error {
	r.logger.Printf("WARNING: Failed to push note %s (%s): %v", n.ID, n.PushVerb(), cause)
	if err := r.store.UpdateSyncStateContext(ctx, n.ID, note.StateSyncFailed); err != nil {
		return fmt.Errorf("failed to flag note %s: %w", n.ID, err)
	}
	return nil
}

// pull fetches all remote notes and upserts the ones with no local
// pending change.
//
// The exclusion set is the union of the ids pending before the push phase
// and the ids pending now, so a local edit that raced with the pass is
// never clobbered. Notes absent from the fetch are left alone - deletes
// by other clients are not inferred from absence.
func (r *reconciler) pull(ctx context.Context, pendingBefore map[string]bool) error {
	remoteNotes, err := r.gateway.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	pendingNow, err := r.store.PendingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to re-read pending notes: %w", err)
	}

	skip := make(map[string]bool, len(pendingBefore)+len(pendingNow))
	for id := range pendingBefore {
		skip[id] = true
	}
	for _, n := range pendingNow {
		skip[n.ID] = true
	}

	var pulled int
	for _, rn := range remoteNotes {
		if skip[rn.ID] {
			continue
		}

		c := rn.Clone()
		c.SyncState = note.StateSynced
		c.Deleted = false
		if err := r.store.PutContext(ctx, c); err != nil {
			return fmt.Errorf("failed to store pulled note %s: %w", c.ID, err)
		}
		pulled++
	}

	r.logger.Printf("Pull phase complete: fetched=%d, applied=%d", len(remoteNotes), pulled)
	return nil
}

// RetryFailed implements Reconciler.RetryFailed.
func (r *reconciler) RetryFailed(ctx context.Context) error {
	pending, err := r.store.PendingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending notes: %w", err)
	}

	var retried int
	for _, n := range pending {
		if n.SyncState != note.StateSyncFailed {
			continue
		}
		if err := r.store.UpdateSyncStateContext(ctx, n.ID, n.RetryState()); err != nil {
			return fmt.Errorf("failed to reset note %s for retry: %w", n.ID, err)
		}
		retried++
	}

	if retried > 0 {
		r.logger.Printf("Reset %d failed notes for retry", retried)
	}
	return nil
}
