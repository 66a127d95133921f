// Package sync provides the push/pull reconciliation algorithm that keeps
// the local note store and the remote authority in agreement.
package sync

import "context"

// Reconciler reconciles the local store against the remote gateway.
//
// A reconciliation pass has two phases. The push phase walks every
// pending note (anything not synced, including earlier failures) and
// issues the create/update/delete the note's state calls for. The pull
// phase then fetches all remote notes and upserts the ones that have no
// local pending change, tagging them synced.
//
// The reconciler is designed to be resilient - an individual note's push
// failure flags that note sync_failed and the pass continues with the
// remaining notes. Only a missing connection (checked up front, before
// any side effects) or a local store fault aborts a pass.
type Reconciler interface {
	// Reconcile runs one push/pull pass and returns the number of notes
	// successfully pushed to the remote.
	//
	// Returns remote.ErrNoConnection if the connectivity probe reports
	// offline; nothing is attempted in that case. Per-note remote
	// failures are absorbed into sync_failed states and never propagate.
	// A pull fetch failure or a local store fault is returned to the
	// caller; notes already pushed stay synced.
	//
	// Example:
	//   synced, err := rec.Reconcile(ctx)
	Reconcile(ctx context.Context) (int, error)

	// RetryFailed re-derives every sync_failed note back into the
	// pending state matching the push it was attempting: pending_delete
	// if the note carries a delete tombstone, pending_create if the
	// remote never accepted it, pending_update otherwise.
	//
	// It only rewrites local state; call Reconcile afterwards to push.
	RetryFailed(ctx context.Context) error
}
