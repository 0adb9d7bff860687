package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/valter-silva-au/ai-dev-team/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// WSHub relays run progress from the event bus to every connected
// websocket client.
type WSHub struct {
	bus     *observability.EventBus
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewWSHub creates a hub fed by bus.
func NewWSHub(bus *observability.EventBus) *WSHub {
	return &WSHub{bus: bus, clients: make(map[*websocket.Conn]bool)}
}

// Run subscribes to the bus and broadcasts until ctx is cancelled. It is the
// only writer to client connections.
func (h *WSHub) Run(ctx context.Context) {
	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: encoding %s event: %v\n", evt.Type, err)
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *WSHub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client disconnects. Incoming messages are ignored.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: websocket upgrade: %v\n", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
