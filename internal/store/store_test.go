package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return st
}

// testNote builds a pending_create note with the given id.
func testNote(id, title string) *note.Note {
	now := time.Now()
	return &note.Note{
		ID:        id,
		Title:     title,
		Body:      "body of " + title,
		CreatedAt: now,
		UpdatedAt: now,
		SyncState: note.StatePendingCreate,
	}
}

func TestPutAndGetByID(t *testing.T) {
	st := setupTestStore(t)

	n := testNote("n-1", "First")
	if err := st.Put(n); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := st.GetByID("n-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "First" || got.SyncState != note.StatePendingCreate {
		t.Errorf("unexpected note: %+v", got)
	}
	if got.ServerVersion != 0 {
		t.Errorf("expected server version 0, got %d", got.ServerVersion)
	}
	// Timestamps round-trip at millisecond precision.
	if got.UpdatedAt.UnixMilli() != n.UpdatedAt.UnixMilli() {
		t.Errorf("updated_at did not round-trip: %v vs %v", got.UpdatedAt, n.UpdatedAt)
	}
}

func TestPutIsUpsert(t *testing.T) {
	st := setupTestStore(t)

	if err := st.Put(testNote("n-1", "First")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	edited := testNote("n-1", "Renamed")
	if err := st.Put(edited); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	count, err := st.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 note (upserted, not duplicated), got %d", count)
	}

	got, err := st.GetByID("n-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Renamed" {
		t.Errorf("expected upserted title, got %q", got.Title)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	st := setupTestStore(t)

	_, err := st.GetByID("nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteByIDIdempotent(t *testing.T) {
	st := setupTestStore(t)

	if err := st.Put(testNote("n-1", "First")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := st.DeleteByID("n-1"); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if err := st.DeleteByID("n-1"); err != nil {
		t.Errorf("second DeleteByID should be a no-op, got %v", err)
	}

	count, err := st.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 notes after delete, got %d", count)
	}
}

func TestUpdateSyncState(t *testing.T) {
	st := setupTestStore(t)

	if err := st.Put(testNote("n-1", "First")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := st.UpdateSyncState("n-1", note.StateSyncFailed); err != nil {
		t.Fatalf("UpdateSyncState failed: %v", err)
	}

	got, err := st.GetByID("n-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SyncState != note.StateSyncFailed {
		t.Errorf("expected sync_failed, got %s", got.SyncState)
	}
	if got.Title != "First" {
		t.Errorf("payload must survive a sync state change, got %q", got.Title)
	}

	if err := st.UpdateSyncState("n-1", "bogus"); err == nil {
		t.Errorf("expected error for invalid sync state")
	}
}

func TestPendingIncludesFailed(t *testing.T) {
	st := setupTestStore(t)

	synced := testNote("n-1", "Synced")
	synced.SyncState = note.StateSynced
	synced.ServerVersion = 1
	if err := st.Put(synced); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := st.Put(testNote("n-2", "Pending")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	failed := testNote("n-3", "Failed")
	failed.SyncState = note.StateSyncFailed
	if err := st.Put(failed); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	pending, err := st.Pending()
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending notes, got %d", len(pending))
	}

	count, err := st.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected pending count 2, got %d", count)
	}
}

func TestListOrderAndPendingDeleteFilter(t *testing.T) {
	st := setupTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"n-1", "n-2", "n-3"} {
		n := testNote(id, fmt.Sprintf("Note %d", i+1))
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		n.UpdatedAt = n.CreatedAt
		if err := st.Put(n); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	deleting := testNote("n-2", "Note 2")
	deleting.SyncState = note.StatePendingDelete
	deleting.Deleted = true
	if err := st.Put(deleting); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	all, err := st.List(false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 notes unfiltered, got %d", len(all))
	}

	visible, err := st.List(true)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible notes, got %d", len(visible))
	}

	// Newest first.
	if visible[0].ID != "n-3" || visible[1].ID != "n-1" {
		t.Errorf("expected order [n-3 n-1], got [%s %s]", visible[0].ID, visible[1].ID)
	}
}

func TestWatchPushesOnEveryMutation(t *testing.T) {
	st := setupTestStore(t)

	ch, cancel := st.Watch()
	defer cancel()

	// Initial snapshot is replayed on subscribe.
	if notes := recvNotes(t, ch); len(notes) != 0 {
		t.Errorf("expected empty initial snapshot, got %d notes", len(notes))
	}

	if err := st.Put(testNote("n-1", "First")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if notes := recvNotes(t, ch); len(notes) != 1 {
		t.Errorf("expected 1 note after Put, got %d", len(notes))
	}

	if err := st.DeleteByID("n-1"); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if notes := recvNotes(t, ch); len(notes) != 0 {
		t.Errorf("expected 0 notes after delete, got %d", len(notes))
	}
}

func TestWatchPendingCount(t *testing.T) {
	st := setupTestStore(t)

	ch, cancel := st.WatchPendingCount()
	defer cancel()

	if got := recvInt(t, ch); got != 0 {
		t.Errorf("expected initial pending count 0, got %d", got)
	}

	if err := st.Put(testNote("n-1", "First")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if got := recvInt(t, ch); got != 1 {
		t.Errorf("expected pending count 1, got %d", got)
	}

	if err := st.UpdateSyncState("n-1", note.StateSynced); err != nil {
		t.Fatalf("UpdateSyncState failed: %v", err)
	}
	if got := recvInt(t, ch); got != 0 {
		t.Errorf("expected pending count 0 after sync, got %d", got)
	}
}

func TestWatchByID(t *testing.T) {
	st := setupTestStore(t)

	ch, cancel := st.WatchByID("n-1")
	defer cancel()

	if n := recvNote(t, ch); n != nil {
		t.Errorf("expected nil for absent note, got %+v", n)
	}

	if err := st.Put(testNote("n-1", "First")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if n := recvNote(t, ch); n == nil || n.Title != "First" {
		t.Errorf("expected note after Put, got %+v", n)
	}

	if err := st.DeleteByID("n-1"); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if n := recvNote(t, ch); n != nil {
		t.Errorf("expected nil after delete, got %+v", n)
	}
}

func recvNotes(t *testing.T, ch <-chan []*note.Note) []*note.Note {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for list snapshot")
		return nil
	}
}

func recvInt(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for count")
		return 0
	}
}

func recvNote(t *testing.T, ch <-chan *note.Note) *note.Note {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for note")
		return nil
	}
}
