// Package note provides the data structures for synchronized notes.
package note

import (
	"fmt"
	"time"
)

// SyncState tracks where a note stands relative to the remote authority.
// It is persisted as its symbolic name so new states can be added without
// a schema migration.
type SyncState string

const (
	// StateSynced means the local copy matches what the remote last accepted.
	StateSynced SyncState = "synced"

	// StatePendingCreate means the note was created locally and has never
	// been accepted by the remote.
	StatePendingCreate SyncState = "pending_create"

	// StatePendingUpdate means the note has local edits not yet pushed.
	StatePendingUpdate SyncState = "pending_update"

	// StatePendingDelete means a local delete is awaiting remote confirmation.
	// The note stays in the store until the remote delete succeeds.
	StatePendingDelete SyncState = "pending_delete"

	// StateSyncFailed means the last push attempt for this note failed.
	// Failed notes are retried on every reconciliation pass.
	StateSyncFailed SyncState = "sync_failed"
)

// Valid reports whether s is a known sync state.
func (s SyncState) Valid() bool {
	switch s {
	case StateSynced, StatePendingCreate, StatePendingUpdate, StatePendingDelete, StateSyncFailed:
		return true
	}
	return false
}

// Pending reports whether the state represents unpushed local change.
// Everything except synced is pending, including sync_failed.
func (s SyncState) Pending() bool {
	return s != StateSynced
}

// String returns the persisted symbolic name.
func (s SyncState) String() string {
	return string(s)
}

// Verb is the remote operation a pending note requires on the next push.
type Verb int

const (
	// VerbNone indicates no push is needed (note is synced).
	VerbNone Verb = iota
	// VerbCreate indicates the note must be created remotely.
	VerbCreate
	// VerbUpdate indicates the note must be updated remotely.
	VerbUpdate
	// VerbDelete indicates the note must be deleted remotely.
	VerbDelete
)

// String returns a human-readable representation of the verb.
func (v Verb) String() string {
	switch v {
	case VerbCreate:
		return "create"
	case VerbUpdate:
		return "update"
	case VerbDelete:
		return "delete"
	default:
		return "none"
	}
}

// Note is the synchronized unit of data: identity, payload, and sync metadata.
//
// Fields are flat with last-write-wins semantics; UpdatedAt is refreshed on
// every local mutation and resolves nothing beyond display ordering. The
// remote authority assigns ServerVersion; zero means "never accepted".
type Note struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Payload =====
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`

	// ===== Timestamps =====
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ===== Sync Metadata =====
	SyncState SyncState `json:"sync_state"`

	// ServerVersion is the opaque counter assigned by the remote.
	// Zero means the remote has never accepted this note.
	ServerVersion int64 `json:"server_version"`

	// Deleted marks a locally requested delete. It survives a failed push
	// so a sync_failed note still remembers it was being deleted.
	Deleted bool `json:"deleted,omitempty"`
}

// Validate checks that the note has valid field values.
func (n *Note) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if n.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(n.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(n.Title))
	}
	if !n.SyncState.Valid() {
		return fmt.Errorf("invalid sync state %q", n.SyncState)
	}
	if n.ServerVersion < 0 {
		return fmt.Errorf("server version must not be negative (got %d)", n.ServerVersion)
	}
	if n.SyncState == StateSynced && n.ServerVersion == 0 {
		return fmt.Errorf("synced note must have a server version")
	}
	if n.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if n.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (n *Note) SetDefaults() {
	if n.SyncState == "" {
		n.SyncState = StatePendingCreate
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
}

// Touch sets UpdatedAt to the current time.
// Call this whenever the payload is modified locally.
func (n *Note) Touch() {
	n.UpdatedAt = time.Now()
}

// Clone returns a copy of the note.
func (n *Note) Clone() *Note {
	c := *n
	return &c
}

// PushVerb returns the remote operation this note needs on the next push.
//
// For sync_failed notes the original verb is re-derived: the Deleted flag
// wins, then ServerVersion decides between create (never accepted) and
// update.
func (n *Note) PushVerb() Verb {
	switch n.SyncState {
	case StatePendingCreate:
		return VerbCreate
	case StatePendingUpdate:
		return VerbUpdate
	case StatePendingDelete:
		return VerbDelete
	case StateSyncFailed:
		if n.Deleted {
			return VerbDelete
		}
		if n.ServerVersion == 0 {
			return VerbCreate
		}
		return VerbUpdate
	default:
		return VerbNone
	}
}

// RetryState returns the pending state a sync_failed note is re-derived
// into when a retry is requested. For any other state it returns the
// state unchanged.
func (n *Note) RetryState() SyncState {
	if n.SyncState != StateSyncFailed {
		return n.SyncState
	}
	if n.Deleted {
		return StatePendingDelete
	}
	if n.ServerVersion == 0 {
		return StatePendingCreate
	}
	return StatePendingUpdate
}

// StateAfterEdit returns the sync state a local edit moves the note into.
//
// A note the remote never accepted stays (or becomes) pending_create so the
// next push uses the right verb; everything else becomes pending_update.
// Editing a note that is pending_delete is rejected by the engine before
// this is consulted.
func (n *Note) StateAfterEdit() SyncState {
	if n.ServerVersion == 0 {
		return StatePendingCreate
	}
	return StatePendingUpdate
}
