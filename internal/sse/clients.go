// Package sse fans draft events out to browser tabs over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/config"
	"github.com/debemdeboas/composer/internal/model"
)

// Event is one named SSE message.
type Event struct {
	Name string
	Data string
}

type Client struct {
	Msg     chan Event
	DraftID model.DraftID
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast delivers ev to every client watching id. Slow clients miss the event.
func (s *SSEClients) Broadcast(id model.DraftID, ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.DraftID == id {
			select {
			case client.Msg <- ev:
			default:
			}
		}
	}
}

// ServeHTTP streams events for the draft named by the ?draft= query parameter.
func (s *SSEClients) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	id := model.DraftID(r.URL.Query().Get("draft"))
	if !id.Valid() {
		http.Error(w, "Draft parameter required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeSSE)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", id)
	flusher.Flush()

	client := &Client{
		Msg:     make(chan Event, 8),
		DraftID: id,
	}
	s.Add(client)
	l.Debug().Str("draft_id", string(id)).Msg("SSE client connected")

	defer func() {
		s.Delete(client)
		l.Debug().Str("draft_id", string(id)).Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case ev := <-client.Msg:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
