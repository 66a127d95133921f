package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestServer serves a minimal in-memory note API.
func newTestServer(t *testing.T) (*httptest.Server, map[string]*wireNote) {
	t.Helper()

	notes := make(map[string]*wireNote)
	var version int64

	mux := http.NewServeMux()
	mux.HandleFunc("/notes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			all := make([]*wireNote, 0, len(notes))
			for _, n := range notes {
				all = append(all, n)
			}
			_ = json.NewEncoder(w).Encode(all)
		case http.MethodPost:
			var n wireNote
			if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			version++
			n.ServerVersion = version
			notes[n.ID] = &n
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(&n)
		}
	})
	mux.HandleFunc("/notes/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/notes/")
		if _, ok := notes[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPut:
			var n wireNote
			if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			version++
			n.ServerVersion = version
			notes[id] = &n
			_ = json.NewEncoder(w).Encode(&n)
		case http.MethodDelete:
			delete(notes, id)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, notes
}

func TestHTTPGatewayRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	gw := NewHTTPGateway(srv.URL, srv.Client())
	ctx := context.Background()

	created, err := gw.Create(ctx, localNote("n-1", "First"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ServerVersion != 1 {
		t.Errorf("expected server version 1, got %d", created.ServerVersion)
	}

	created.Title = "Edited"
	updated, err := gw.Update(ctx, created)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ServerVersion != 2 {
		t.Errorf("expected server version 2, got %d", updated.ServerVersion)
	}

	all, err := gw.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(all) != 1 || all[0].Title != "Edited" {
		t.Errorf("unexpected fetch result: %+v", all)
	}

	if err := gw.Delete(ctx, "n-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	all, err = gw.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty remote after delete, got %d notes", len(all))
	}
}

func TestHTTPGatewayNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	gw := NewHTTPGateway(srv.URL, srv.Client())
	ctx := context.Background()

	if _, err := gw.Update(ctx, localNote("ghost", "Ghost")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Update, got %v", err)
	}
	if err := gw.Delete(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Delete, got %v", err)
	}
}

func TestHTTPGatewayNetworkFailure(t *testing.T) {
	// A closed server is as good as an unplugged cable.
	srv, _ := newTestServer(t)
	url := srv.URL
	srv.Close()

	gw := NewHTTPGateway(url, &http.Client{Timeout: time.Second})
	if _, err := gw.FetchAll(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}
