package engine

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/connectivity"
	"github.com/phayzeee/Offline-First-Architecture/internal/daemon"
	"github.com/phayzeee/Offline-First-Architecture/internal/note"
	"github.com/phayzeee/Offline-First-Architecture/internal/remote"
	"github.com/phayzeee/Offline-First-Architecture/internal/store"
	syncpkg "github.com/phayzeee/Offline-First-Architecture/internal/sync"
)

type testRig struct {
	engine *Engine
	store  *store.Store
	sim    *remote.Simulator
	conn   *connectivity.Monitor
	daemon *daemon.Daemon
}

func setupEngine(t *testing.T, startDaemon bool) *testRig {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	sim := remote.NewSimulator()
	conn := connectivity.NewMonitor(true)
	quiet := log.New(io.Discard, "", 0)

	rec := syncpkg.New(st, sim, conn.Online, quiet)

	config := daemon.DefaultConfig()
	config.RetryBackoff = 10 * time.Millisecond
	config.SyncInterval = time.Hour
	config.Logger = quiet
	d, err := daemon.NewWithConfig(st, rec, conn, config)
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}
	if startDaemon {
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("failed to start daemon: %v", err)
		}
		t.Cleanup(d.Stop)
	}

	eng, err := New(st, d, conn, quiet)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return &testRig{engine: eng, store: st, sim: sim, conn: conn, daemon: d}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestCreateNoteIsImmediatelyVisible(t *testing.T) {
	rig := setupEngine(t, false)
	ctx := context.Background()

	n, err := rig.engine.CreateNote(ctx, "Groceries", "milk, eggs")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if n.ID == "" {
		t.Fatal("expected a generated id")
	}
	if n.SyncState != note.StatePendingCreate {
		t.Errorf("expected pending_create, got %q", n.SyncState)
	}

	notes, err := rig.engine.Notes(ctx)
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Fatalf("expected the new note in listing, got %d notes", len(notes))
	}
}

func TestCreateNoteSucceedsOffline(t *testing.T) {
	rig := setupEngine(t, false)
	rig.conn.Set(false)

	n, err := rig.engine.CreateNote(context.Background(), "Offline thought", "")
	if err != nil {
		t.Fatalf("CreateNote failed offline: %v", err)
	}
	got, err := rig.store.GetByID(n.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SyncState != note.StatePendingCreate {
		t.Errorf("expected pending_create, got %q", got.SyncState)
	}
}

func TestEditNoteTransitions(t *testing.T) {
	rig := setupEngine(t, false)
	ctx := context.Background()

	created, err := rig.engine.CreateNote(ctx, "Draft", "v1")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	// Unsynced note stays pending_create through edits.
	edited, err := rig.engine.EditNote(ctx, created.ID, "Draft", "v2")
	if err != nil {
		t.Fatalf("EditNote failed: %v", err)
	}
	if edited.SyncState != note.StatePendingCreate {
		t.Errorf("expected pending_create after editing unsynced note, got %q", edited.SyncState)
	}

	// A synced note moves to pending_update.
	synced := edited.Clone()
	synced.SyncState = note.StateSynced
	synced.ServerVersion = 1
	if err := rig.store.Put(synced); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	edited, err = rig.engine.EditNote(ctx, created.ID, "Draft", "v3")
	if err != nil {
		t.Fatalf("EditNote failed: %v", err)
	}
	if edited.SyncState != note.StatePendingUpdate {
		t.Errorf("expected pending_update after editing synced note, got %q", edited.SyncState)
	}
}

func TestEditUnknownNote(t *testing.T) {
	rig := setupEngine(t, false)

	_, err := rig.engine.EditNote(context.Background(), "missing", "t", "b")
	if !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestEditPendingDeleteRejected(t *testing.T) {
	rig := setupEngine(t, false)
	ctx := context.Background()

	n := &note.Note{ID: "n-del", Title: "Doomed", SyncState: note.StateSynced, ServerVersion: 1}
	n.SetDefaults()
	if err := rig.store.Put(n); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := rig.engine.DeleteNote(ctx, "n-del"); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}

	_, err := rig.engine.EditNote(ctx, "n-del", "Back", "from the dead")
	if !errors.Is(err, ErrNoteDeleted) {
		t.Errorf("expected ErrNoteDeleted, got %v", err)
	}
}

func TestDeleteUnsyncedNoteRemovesImmediately(t *testing.T) {
	rig := setupEngine(t, false)
	ctx := context.Background()

	n, err := rig.engine.CreateNote(ctx, "Scratch", "")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	if err := rig.engine.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}

	if _, err := rig.engine.GetNote(ctx, n.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("expected hard removal of unsynced note, got %v", err)
	}
}

func TestDeleteSyncedNoteHidesAndTombstones(t *testing.T) {
	rig := setupEngine(t, false)
	ctx := context.Background()

	n := &note.Note{ID: "n-1", Title: "Keep remote", SyncState: note.StateSynced, ServerVersion: 2}
	n.SetDefaults()
	if err := rig.store.Put(n); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := rig.engine.DeleteNote(ctx, "n-1"); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}

	notes, err := rig.engine.Notes(ctx)
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("expected deleted note hidden from listing, got %d notes", len(notes))
	}

	got, err := rig.store.GetByID("n-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SyncState != note.StatePendingDelete || !got.Deleted {
		t.Errorf("expected pending_delete tombstone, got state=%q deleted=%v", got.SyncState, got.Deleted)
	}
}

func TestWatchNotesStreamsChanges(t *testing.T) {
	rig := setupEngine(t, false)

	ch, cancel := rig.engine.WatchNotes()
	defer cancel()

	// Replay of the (empty) current list.
	select {
	case notes := <-ch:
		if len(notes) != 0 {
			t.Fatalf("expected empty initial list, got %d", len(notes))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial list replayed")
	}

	if _, err := rig.engine.CreateNote(context.Background(), "Live", ""); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	select {
	case notes := <-ch:
		if len(notes) != 1 || notes[0].Title != "Live" {
			t.Fatalf("expected updated list with the new note, got %d", len(notes))
		}
	case <-time.After(time.Second):
		t.Fatal("no update after create")
	}
}

// TestFailedDeleteRetriesAsDelete walks the full lifecycle of a delete
// that fails remotely: the note disappears from the user's view when
// deleted, survives the failure as a hidden tombstone, and an explicit
// retry finishes the remote deletion.
func TestFailedDeleteRetriesAsDelete(t *testing.T) {
	rig := setupEngine(t, true)
	ctx := context.Background()

	n, err := rig.engine.CreateNote(ctx, "Doomed", "body")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		got, err := rig.store.GetByID(n.ID)
		return err == nil && got.SyncState == note.StateSynced
	})
	if rig.sim.Count() != 1 {
		t.Fatalf("expected 1 remote note after push, got %d", rig.sim.Count())
	}

	// The delete fails remotely on every attempt until told otherwise.
	rig.sim.FailID(n.ID, true)

	if err := rig.engine.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		got, err := rig.store.GetByID(n.ID)
		return err == nil && got.SyncState == note.StateSyncFailed
	})

	// Still hidden from the user despite the failure.
	notes, err := rig.engine.Notes(ctx)
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("expected failed delete to stay hidden, got %d notes", len(notes))
	}
	if rig.sim.Count() != 1 {
		t.Fatalf("remote copy should survive the failed delete")
	}

	// Heal the remote and retry: the tombstone must retry as a delete,
	// not resurrect as an update.
	rig.sim.FailID(n.ID, false)
	if err := rig.engine.Retry(ctx); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, err := rig.store.GetByID(n.ID)
		return errors.Is(err, sql.ErrNoRows)
	})
	if rig.sim.Count() != 0 {
		t.Errorf("expected remote note deleted after retry, got %d", rig.sim.Count())
	}

	waitFor(t, 2*time.Second, func() bool {
		return rig.engine.Status().Status == daemon.StatusIdle
	})
}

// TestOfflineEditSyncsOnReconnect covers the offline-first promise:
// edits made offline queue locally and flow out when connectivity
// returns.
func TestOfflineEditSyncsOnReconnect(t *testing.T) {
	rig := setupEngine(t, true)
	ctx := context.Background()

	n, err := rig.engine.CreateNote(ctx, "Travel plans", "v1")
	if err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		got, err := rig.store.GetByID(n.ID)
		return err == nil && got.SyncState == note.StateSynced
	})

	rig.conn.Set(false)
	rig.sim.SetOffline(true)

	if _, err := rig.engine.EditNote(ctx, n.ID, "Travel plans", "v2, offline"); err != nil {
		t.Fatalf("EditNote failed offline: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return rig.engine.Status().Status == daemon.StatusOffline
	})

	rig.sim.SetOffline(false)
	rig.conn.Set(true)

	waitFor(t, 2*time.Second, func() bool {
		got, err := rig.store.GetByID(n.ID)
		return err == nil && got.SyncState == note.StateSynced && got.Body == "v2, offline"
	})
	serverCopy := rig.sim.Get(n.ID)
	if serverCopy == nil {
		t.Fatal("note missing from remote")
	}
	if serverCopy.Body != "v2, offline" {
		t.Errorf("expected offline edit pushed, got body %q", serverCopy.Body)
	}
}
