package remote

import (
	"context"
	"sync"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
)

// Simulator is an in-memory Gateway for tests and demos.
//
// It assigns monotonically increasing server versions, echoes accepted
// copies the way a real authority would, and supports failure injection
// per verb and per note id.
type Simulator struct {
	mu          sync.Mutex
	notes       map[string]*note.Note
	nextVersion int64

	offline    bool
	failFetch  bool
	failCreate bool
	failUpdate bool
	failDelete bool
	failIDs    map[string]bool
}

// NewSimulator creates an empty simulated remote.
func NewSimulator() *Simulator {
	return &Simulator{
		notes:   make(map[string]*note.Note),
		failIDs: make(map[string]bool),
	}
}

// SetOffline makes every call fail with ErrNetwork.
func (s *Simulator) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// FailFetch makes FetchAll fail with ErrNetwork.
func (s *Simulator) FailFetch(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetch = fail
}

// FailCreate makes Create fail with ErrNetwork.
func (s *Simulator) FailCreate(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = fail
}

// FailUpdate makes Update fail with ErrNetwork.
func (s *Simulator) FailUpdate(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate = fail
}

// FailDelete makes Delete fail with ErrNetwork.
func (s *Simulator) FailDelete(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = fail
}

// FailID makes every push verb fail with ErrNetwork for one note id.
func (s *Simulator) FailID(id string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fail {
		s.failIDs[id] = true
	} else {
		delete(s.failIDs, id)
	}
}

// Seed stores a note directly on the remote, bypassing Create.
// Useful for simulating notes another client pushed.
func (s *Simulator) Seed(n *note.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := n.Clone()
	if c.ServerVersion == 0 {
		s.nextVersion++
		c.ServerVersion = s.nextVersion
	} else if c.ServerVersion > s.nextVersion {
		s.nextVersion = c.ServerVersion
	}
	c.SyncState = note.StateSynced
	c.Deleted = false
	s.notes[c.ID] = c
}

// Remove deletes a note directly on the remote, simulating another
// client's delete. No tombstone is kept.
func (s *Simulator) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, id)
}

// Count returns the number of notes the remote holds.
func (s *Simulator) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// Get returns the remote copy of a note, or nil.
func (s *Simulator) Get(id string) *note.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notes[id]; ok {
		return n.Clone()
	}
	return nil
}

// FetchAll implements Gateway.
func (s *Simulator) FetchAll(ctx context.Context) ([]*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.offline || s.failFetch {
		return nil, ErrNetwork
	}

	notes := make([]*note.Note, 0, len(s.notes))
	for _, n := range s.notes {
		notes = append(notes, n.Clone())
	}
	return notes, nil
}

// Create implements Gateway.
func (s *Simulator) Create(ctx context.Context, n *note.Note) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.offline || s.failCreate || s.failIDs[n.ID] {
		return nil, ErrNetwork
	}

	accepted := n.Clone()
	s.nextVersion++
	accepted.ServerVersion = s.nextVersion
	accepted.UpdatedAt = time.Now()
	accepted.SyncState = note.StateSynced
	accepted.Deleted = false
	s.notes[accepted.ID] = accepted.Clone()

	return accepted, nil
}

// Update implements Gateway.
func (s *Simulator) Update(ctx context.Context, n *note.Note) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.offline || s.failUpdate || s.failIDs[n.ID] {
		return nil, ErrNetwork
	}
	if _, ok := s.notes[n.ID]; !ok {
		return nil, ErrNotFound
	}

	accepted := n.Clone()
	s.nextVersion++
	accepted.ServerVersion = s.nextVersion
	accepted.UpdatedAt = time.Now()
	accepted.SyncState = note.StateSynced
	accepted.Deleted = false
	s.notes[accepted.ID] = accepted.Clone()

	return accepted, nil
}

// Delete implements Gateway.
func (s *Simulator) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.offline || s.failDelete || s.failIDs[id] {
		return ErrNetwork
	}
	if _, ok := s.notes[id]; !ok {
		return ErrNotFound
	}

	delete(s.notes, id)
	return nil
}
