package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phayzeee/Offline-First-Architecture/internal/note"
)

// wireNote is the JSON shape notes travel in over HTTP.
// Timestamps are epoch milliseconds, matching the store schema.
type wireNote struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Body          string `json:"body,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	ServerVersion int64  `json:"server_version"`
}

func toWire(n *note.Note) *wireNote {
	return &wireNote{
		ID:            n.ID,
		Title:         n.Title,
		Body:          n.Body,
		CreatedAt:     n.CreatedAt.UnixMilli(),
		UpdatedAt:     n.UpdatedAt.UnixMilli(),
		ServerVersion: n.ServerVersion,
	}
}

func fromWire(w *wireNote) *note.Note {
	return &note.Note{
		ID:            w.ID,
		Title:         w.Title,
		Body:          w.Body,
		CreatedAt:     time.UnixMilli(w.CreatedAt),
		UpdatedAt:     time.UnixMilli(w.UpdatedAt),
		ServerVersion: w.ServerVersion,
		SyncState:     note.StateSynced,
	}
}

// HTTPGateway talks to a JSON-over-HTTP note service:
//
//	GET    {base}/notes        list all notes
//	POST   {base}/notes        create a note
//	PUT    {base}/notes/{id}   update a note
//	DELETE {base}/notes/{id}   delete a note
//
// Transport failures surface as ErrNetwork; a 404 on update/delete
// surfaces as ErrNotFound.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway against the given base URL.
// If client is nil, a default client with a 10 second timeout is used.
func NewHTTPGateway(baseURL string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPGateway{baseURL: baseURL, client: client}
}

// FetchAll implements Gateway.
func (g *HTTPGateway) FetchAll(ctx context.Context) ([]*note.Note, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/notes", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch returned %s", ErrNetwork, resp.Status)
	}

	var wires []*wireNote
	if err := json.NewDecoder(resp.Body).Decode(&wires); err != nil {
		return nil, fmt.Errorf("%w: invalid fetch response: %v", ErrNetwork, err)
	}

	notes := make([]*note.Note, 0, len(wires))
	for _, w := range wires {
		notes = append(notes, fromWire(w))
	}
	return notes, nil
}

// Create implements Gateway.
func (g *HTTPGateway) Create(ctx context.Context, n *note.Note) (*note.Note, error) {
	return g.push(ctx, http.MethodPost, g.baseURL+"/notes", n)
}

// Update implements Gateway.
func (g *HTTPGateway) Update(ctx context.Context, n *note.Note) (*note.Note, error) {
	return g.push(ctx, http.MethodPut, g.baseURL+"/notes/"+n.ID, n)
}

// Delete implements Gateway.
func (g *HTTPGateway) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/notes/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: note %s", ErrNotFound, id)
	default:
		return fmt.Errorf("%w: delete returned %s", ErrNetwork, resp.Status)
	}
}

// push sends a note and decodes the accepted copy the server echoes back.
func (g *HTTPGateway) push(ctx context.Context, method, url string, n *note.Note) (*note.Note, error) {
	body, err := json.Marshal(toWire(n))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal note %s: %w", n.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: note %s", ErrNotFound, n.ID)
	default:
		return nil, fmt.Errorf("%w: %s returned %s", ErrNetwork, method, resp.Status)
	}

	var accepted wireNote
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return nil, fmt.Errorf("%w: invalid push response: %v", ErrNetwork, err)
	}

	return fromWire(&accepted), nil
}
