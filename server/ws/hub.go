// Package ws implements the Server-Sent Events (SSE) hub that delivers
// the realtime change feed: one event per committed write, meaning
// "shared state changed, re-fetch". Clients never receive row diffs.
package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Event is a typed change notification broadcast to connected clients.
// Marshaled events are compact JSON, so each one fits a single SSE
// data line.
type Event struct {
	Type  string `json:"type"`
	Table string `json:"table,omitempty"` // tasks, programs, users
}

// ChangeEvent builds the standard "re-fetch" signal for a table.
func ChangeEvent(table string) Event {
	return Event{Type: "change", Table: table}
}

// connectedEvent is the handshake sent when a stream opens. Sync
// clients recognize and skip it.
var connectedEvent = Event{Type: "connected"}

// feed is one connected consumer's delivery queue.
type feed chan []byte

// Hub tracks connected feed consumers and broadcasts events to them.
type Hub struct {
	mu     sync.RWMutex
	feeds  map[feed]struct{}
	logger *slog.Logger
}

// NewHub creates a Hub ready to accept connections.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		feeds:  make(map[feed]struct{}),
		logger: logger,
	}
}

// ClientCount returns the number of connected feed consumers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.feeds)
}

// Broadcast sends an event to all connected clients. A consumer whose
// queue is full is skipped rather than blocked on; a starved consumer
// re-fetches on its next delivered signal, so nothing is lost.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("hub broadcast marshal", slog.Any("err", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for f := range h.feeds {
		select {
		case f <- data:
		default:
		}
	}
}

// ServeSSE upgrades the request to an event stream, sends the handshake
// event, and relays broadcasts until the client disconnects.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	f := h.attach()
	defer h.detach(f)

	hello, _ := json.Marshal(connectedEvent)
	writeEvent(w, flusher, hello)

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-f:
			writeEvent(w, flusher, data)
		}
	}
}

func (h *Hub) attach() feed {
	f := make(feed, 64)
	h.mu.Lock()
	h.feeds[f] = struct{}{}
	h.mu.Unlock()
	return f
}

func (h *Hub) detach(f feed) {
	h.mu.Lock()
	delete(h.feeds, f)
	h.mu.Unlock()
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, data []byte) {
	fmt.Fprintf(w, "data: %s\n\n", data) //nolint:errcheck
	flusher.Flush()
}
