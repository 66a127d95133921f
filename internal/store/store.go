// Package store provides the embedded SQLite store that is the single
// source of truth for notes.
//
// The database runs in embedded mode using the ncruces/go-sqlite3 driver
// with WAL for concurrent reads. All writes go through the store's narrow
// contract; committed mutations are pushed to live watchers so observers
// see every write before the call returns.
//
// Schema:
//   - notes table keyed by id
//   - sync_state persisted as its symbolic name (TEXT)
//   - timestamps persisted as epoch-millisecond integers
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/live"
	"github.com/phayzeee/Offline-First-Architecture/internal/note"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with note-specific functionality and
// live query feeds.
type Store struct {
	conn *sql.DB
	path string

	notes        *live.Feed[[]*note.Note]
	pendingCount *live.Feed[int]

	byIDMu sync.Mutex
	byID   map[string]*live.Feed[*note.Note]
}

// Open creates a new store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema before
// first use. The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".notes/notes.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:         conn,
		path:         path,
		notes:        live.NewFeed[[]*note.Note](),
		pendingCount: live.NewFeed[int](),
		byID:         make(map[string]*live.Feed[*note.Note]),
	}

	// Enable WAL mode for concurrent reads
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout to 5 seconds
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		sync_state TEXT NOT NULL DEFAULT 'pending_create',
		server_version INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_notes_sync_state ON notes(sync_state);
	CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Put inserts or updates a note by id.
//
// If a note with the same ID exists, it is updated - never duplicated.
// The write is visible to all live watchers before Put returns.
func (s *Store) Put(n *note.Note) error {
	return s.PutContext(context.Background(), n)
}

// PutContext inserts or updates a note with context support.
func (s *Store) PutContext(ctx context.Context, n *note.Note) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid note: %w", err)
	}

	query := `
	INSERT INTO notes (
		id, title, body, created_at, updated_at,
		sync_state, server_version, deleted
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		updated_at = excluded.updated_at,
		sync_state = excluded.sync_state,
		server_version = excluded.server_version,
		deleted = excluded.deleted
	`

	_, err := s.conn.ExecContext(ctx, query,
		n.ID,
		n.Title,
		n.Body,
		n.CreatedAt.UnixMilli(),
		n.UpdatedAt.UnixMilli(),
		n.SyncState.String(),
		n.ServerVersion,
		boolToInt(n.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert note %s: %w", n.ID, err)
	}

	s.notify(n.ID)
	return nil
}

// GetByID retrieves a single note by ID.
// Returns sql.ErrNoRows if the note is not found.
func (s *Store) GetByID(id string) (*note.Note, error) {
	return s.GetByIDContext(context.Background(), id)
}

// GetByIDContext retrieves a single note by ID with context support.
func (s *Store) GetByIDContext(ctx context.Context, id string) (*note.Note, error) {
	query := `
	SELECT id, title, body, created_at, updated_at,
	       sync_state, server_version, deleted
	FROM notes
	WHERE id = ?
	`

	row := s.conn.QueryRowContext(ctx, query, id)
	n, err := scanNote(row)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteByID hard-removes a note from the store.
//
// Returns nil if the note doesn't exist (idempotent).
// The removal is visible to all live watchers before DeleteByID returns.
func (s *Store) DeleteByID(id string) error {
	return s.DeleteByIDContext(context.Background(), id)
}

// DeleteByIDContext hard-removes a note with context support.
func (s *Store) DeleteByIDContext(ctx context.Context, id string) error {
	query := `DELETE FROM notes WHERE id = ?`
	_, err := s.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}

	s.notify(id)
	return nil
}

// UpdateSyncState changes only the sync state of a note. The reconciler
// uses this to flag success/failure without re-serializing the payload.
func (s *Store) UpdateSyncState(id string, state note.SyncState) error {
	return s.UpdateSyncStateContext(context.Background(), id, state)
}

// UpdateSyncStateContext changes the sync state with context support.
func (s *Store) UpdateSyncStateContext(ctx context.Context, id string, state note.SyncState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid sync state %q", state)
	}

	query := `UPDATE notes SET sync_state = ? WHERE id = ?`
	_, err := s.conn.ExecContext(ctx, query, state.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update sync state for %s: %w", id, err)
	}

	s.notify(id)
	return nil
}

// Pending returns all notes whose sync state is not synced, including
// sync_failed notes. Results are ordered by updated_at ASC so the oldest
// local change is pushed first.
func (s *Store) Pending() ([]*note.Note, error) {
	return s.PendingContext(context.Background())
}

// PendingContext returns pending notes with context support.
func (s *Store) PendingContext(ctx context.Context) ([]*note.Note, error) {
	query := `
	SELECT id, title, body, created_at, updated_at,
	       sync_state, server_version, deleted
	FROM notes
	WHERE sync_state != ?
	ORDER BY updated_at ASC, id ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, note.StateSynced.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query pending notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// PendingCount returns the number of notes with unpushed local changes.
func (s *Store) PendingCount() (int, error) {
	return s.PendingCountContext(context.Background())
}

// PendingCountContext returns the pending count with context support.
func (s *Store) PendingCountContext(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notes WHERE sync_state != ?",
		note.StateSynced.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return count, nil
}

// Count returns the total number of notes in the store.
func (s *Store) Count() (int, error) {
	return s.CountContext(context.Background())
}

// CountContext returns the total note count with context support.
func (s *Store) CountContext(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get note count: %w", err)
	}
	return count, nil
}

// List retrieves notes ordered by updated_at DESC.
// When excludePendingDelete is true, notes awaiting remote deletion are
// filtered out - this is the view the presentation layer renders.
func (s *Store) List(excludePendingDelete bool) ([]*note.Note, error) {
	return s.ListContext(context.Background(), excludePendingDelete)
}

// ListContext retrieves notes with context support.
func (s *Store) ListContext(ctx context.Context, excludePendingDelete bool) ([]*note.Note, error) {
	query := `
	SELECT id, title, body, created_at, updated_at,
	       sync_state, server_version, deleted
	FROM notes
	`

	var args []interface{}
	if excludePendingDelete {
		// Tombstoned notes also hide failed deletions awaiting retry.
		query += " WHERE sync_state != ? AND deleted = 0"
		args = append(args, note.StatePendingDelete.String())
	}

	query += " ORDER BY updated_at DESC, id ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// Watch returns a live feed of the note list (excluding pending deletes,
// ordered by updated_at DESC). The current list is replayed immediately
// and a fresh list is pushed after every committed mutation.
func (s *Store) Watch() (<-chan []*note.Note, func()) {
	s.primeFeeds()
	return s.notes.Subscribe()
}

// WatchPendingCount returns a live feed of the pending-note count.
func (s *Store) WatchPendingCount() (<-chan int, func()) {
	s.primeFeeds()
	return s.pendingCount.Subscribe()
}

// WatchByID returns a live feed for a single note. A nil value means the
// note is absent (deleted or never created).
func (s *Store) WatchByID(id string) (<-chan *note.Note, func()) {
	s.byIDMu.Lock()
	feed, ok := s.byID[id]
	if !ok {
		feed = live.NewFeed[*note.Note]()
		s.byID[id] = feed
	}
	s.byIDMu.Unlock()

	if _, seeded := feed.Latest(); !seeded {
		n, err := s.GetByID(id)
		if err != nil {
			n = nil
		}
		feed.Publish(n)
	}

	return feed.Subscribe()
}

// primeFeeds seeds the list and count feeds so the first subscriber gets
// a snapshot even before any mutation.
func (s *Store) primeFeeds() {
	if _, ok := s.notes.Latest(); !ok {
		if notes, err := s.List(true); err == nil {
			s.notes.Publish(notes)
		}
	}
	if _, ok := s.pendingCount.Latest(); !ok {
		if count, err := s.PendingCount(); err == nil {
			s.pendingCount.Publish(count)
		}
	}
}

// notify pushes fresh snapshots to all live feeds after a committed
// mutation touching the given id.
func (s *Store) notify(id string) {
	if notes, err := s.List(true); err == nil {
		s.notes.Publish(notes)
	}
	if count, err := s.PendingCount(); err == nil {
		s.pendingCount.Publish(count)
	}

	s.byIDMu.Lock()
	feed, ok := s.byID[id]
	s.byIDMu.Unlock()
	if ok {
		n, err := s.GetByID(id)
		if err != nil {
			n = nil
		}
		feed.Publish(n)
	}
}

// scanNotes is a helper function to scan multiple notes from query results.
func scanNotes(rows *sql.Rows) ([]*note.Note, error) {
	var notes []*note.Note

	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanNote scans a single note from a query result row.
func scanNote(row rowScanner) (*note.Note, error) {
	var n note.Note
	var createdAt, updatedAt int64
	var state string
	var deleted int

	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Body,
		&createdAt,
		&updatedAt,
		&state,
		&n.ServerVersion,
		&deleted,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan note: %w", err)
	}

	n.CreatedAt = time.UnixMilli(createdAt)
	n.UpdatedAt = time.UnixMilli(updatedAt)
	n.SyncState = note.SyncState(state)
	n.Deleted = deleted != 0

	return &n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
