package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/daemon"
	"github.com/phayzeee/Offline-First-Architecture/internal/engine"
	"github.com/phayzeee/Offline-First-Architecture/internal/note"
)

// Handler subscribes to the engine's live feeds and formats changes as
// dashboard messages.
type Handler struct {
	server *Server
	engine *engine.Engine
	logger *log.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewHandler creates a handler bridging the engine to a dashboard server.
func NewHandler(server *Server, eng *engine.Engine, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		engine: eng,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Start begins forwarding engine changes to connected clients.
func (h *Handler) Start() {
	notesCh, cancelNotes := h.engine.WatchNotes()
	statusCh, cancelStatus := h.engine.WatchStatus()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancelNotes()
		defer cancelStatus()

		for {
			select {
			case <-h.stop:
				return

			case notes, ok := <-notesCh:
				if !ok {
					return
				}
				h.onNotes(notes)

			case state, ok := <-statusCh:
				if !ok {
					return
				}
				h.onStatus(state)
			}
		}
	}()
}

// Stop ends forwarding. It blocks until the bridge goroutine exits.
func (h *Handler) Stop() {
	close(h.stop)
	h.wg.Wait()
}

// onNotes broadcasts the visible note list and refreshed statistics.
func (h *Handler) onNotes(notes []*note.Note) {
	wire := make([]NoteData, 0, len(notes))
	stats := StatsData{ByState: make(map[string]int)}
	for _, n := range notes {
		wire = append(wire, NoteData{
			ID:        n.ID,
			Title:     n.Title,
			Body:      n.Body,
			SyncState: n.SyncState.String(),
			UpdatedAt: n.UpdatedAt,
		})
		stats.Total++
		stats.ByState[n.SyncState.String()]++
		if n.SyncState.Pending() {
			stats.Pending++
		}
	}

	dataJSON, err := json.Marshal(wire)
	if err != nil {
		h.logger.Printf("Failed to marshal note list: %v", err)
		return
	}
	h.server.Broadcast(Message{
		Type:      MessageTypeNoteList,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}
	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      statsJSON,
	})
}

// onStatus broadcasts a sync status transition.
func (h *Handler) onStatus(state daemon.State) {
	dataJSON, err := json.Marshal(state)
	if err != nil {
		h.logger.Printf("Failed to marshal sync status: %v", err)
		return
	}
	h.server.Broadcast(Message{
		Type:      MessageTypeSyncStatus,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
