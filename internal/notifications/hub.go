// Package notifications delivers comment events to websocket listeners,
// fanning them out across instances through Redis.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"threadline/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per authenticated viewer
	maxConnsPerViewer = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	errServerFull = errors.New("server connection limit reached")
	errViewerFull = errors.New("viewer connection limit reached")
	errHubClosed  = errors.New("hub is shutting down")
)

// Hub tracks every connected comment listener. Listeners may be anonymous.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	perViewer map[string]int
	closed    bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		perViewer: make(map[string]int),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "comment hub" }

// Register adds a listener. viewerID is empty for anonymous listeners, which
// only count against the server-wide limit.
func (h *Hub) Register(viewerID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, errServerFull
	}
	if viewerID != "" && h.perViewer[viewerID] >= maxConnsPerViewer {
		return nil, errViewerFull
	}

	client := NewClient(h, conn, viewerID)
	h.clients[client] = struct{}{}
	if viewerID != "" {
		h.perViewer[viewerID]++
	}
	return client, nil
}

// UnregisterClient removes client and closes its send buffer. It is safe to
// call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if client.ViewerID != "" {
		h.perViewer[client.ViewerID]--
		if h.perViewer[client.ViewerID] <= 0 {
			delete(h.perViewer, client.ViewerID)
		}
	}
	close(client.Send)
}

// Count returns the number of registered listeners.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected listener.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(message)
	}
}

// StartWiring relays every event published on the broadcast channel to this
// hub's listeners.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, func(payload string) {
		h.BroadcastAll([]byte(payload))
	})
}

// Closing reports whether Shutdown has started.
func (h *Hub) Closing() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Shutdown closes every listener's send buffer. Each WritePump then sends the
// close frame and closes its own connection, so the hub never writes to a
// connection concurrently with its pump.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for client := range h.clients {
		close(client.Send)
	}
	middleware.Logger.Debug("comment hub closed", slog.Int("listeners", len(h.clients)))
	h.clients = make(map[*Client]struct{})
	h.perViewer = make(map[string]int)
	return nil
}
