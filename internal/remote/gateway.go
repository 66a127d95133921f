// Package remote defines the capability interface for the remote note
// authority and its implementations.
//
// The sync engine depends only on the Gateway interface; whether the
// other side is HTTP, gRPC, or an in-process simulator is invisible to
// it. Every call is treated as potentially slow and potentially failing,
// and no call is assumed idempotent at the transport level.
package remote

import (
	"context"
	"errors"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
)

var (
	// ErrNetwork indicates a transport-level failure. The affected note is
	// flagged sync_failed and retried on the next pass.
	ErrNetwork = errors.New("remote: network failure")

	// ErrNotFound indicates an update or delete target is unknown
	// server-side. Treated like any other per-record rejection.
	ErrNotFound = errors.New("remote: not found")

	// ErrNoConnection is the precondition failure returned by a
	// reconciliation pass started while offline. Nothing was attempted.
	ErrNoConnection = errors.New("remote: no connection")
)

// Gateway is the remote authority's create/update/delete/fetch capability.
//
// Implementations must echo the server-assigned version (and timestamp)
// on Create and Update so the caller can store the accepted copy.
type Gateway interface {
	// FetchAll returns every note the remote currently holds.
	FetchAll(ctx context.Context) ([]*note.Note, error)

	// Create pushes a new note and returns the accepted copy with its
	// server-assigned version.
	Create(ctx context.Context, n *note.Note) (*note.Note, error)

	// Update pushes an edited note and returns the accepted copy.
	// Returns ErrNotFound if the remote has never seen the id.
	Update(ctx context.Context, n *note.Note) (*note.Note, error)

	// Delete removes a note remotely.
	// Returns ErrNotFound if the remote has never seen the id.
	Delete(ctx context.Context, id string) error
}
