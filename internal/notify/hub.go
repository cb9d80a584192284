/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package notify broadcasts workflow progress snapshots to websocket
// observers. The latest snapshot is replayed to every new connection.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/panteparak/vault-config/pkg/metrics"
	"github.com/panteparak/vault-config/shared/controller/hash"
	"github.com/panteparak/vault-config/shared/events"
)

const (
	// writeWait bounds a single frame write
	writeWait = 10 * time.Second

	// sendBuffer is the per-client queue length; a client that falls this far
	// behind is dropped
	sendBuffer = 16
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is the progress broadcast sink.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	last     []byte
	lastHash string
	closed   bool

	upgrader websocket.Upgrader
	log      logr.Logger
}

// NewHub creates an empty hub.
func NewHub(log logr.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the status page is served from a different port
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.WithName("notify"),
	}
}

// Subscribe forwards ProgressUpdated events from bus to the hub until the
// returned function is called.
func (h *Hub) Subscribe(bus *events.EventBus) (unsubscribe func()) {
	return events.Subscribe(bus, func(_ context.Context, e events.ProgressUpdated) error {
		h.Notify(e.Payload)
		return nil
	})
}

// Notify records payload as the latest snapshot and sends it to every
// connected observer. A payload identical to the previous one is dropped.
func (h *Hub) Notify(payload []byte) {
	sum := hash.FromBytes(payload)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || sum == h.lastHash {
		return
	}
	h.last = append([]byte(nil), payload...)
	h.lastHash = sum

	for c := range h.clients {
		h.enqueueLocked(c, h.last)
	}
}

// Last returns the latest snapshot, or nil before the first one.
func (h *Hub) Last() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Clients returns the number of connected observers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and registers the observer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.V(1).Info("websocket upgrade failed", "error", err.Error())
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		h.enqueueLocked(c, h.last)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetBroadcastClients(n)
	h.log.V(1).Info("observer connected", "remote", r.RemoteAddr, "clients", n)

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every observer and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	metrics.SetBroadcastClients(0)
}

// enqueueLocked queues msg for c, dropping c when its queue is full.
func (h *Hub) enqueueLocked(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.Info("dropping slow observer", "remote", c.conn.RemoteAddr().String())
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetBroadcastClients(n)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards inbound frames until the peer goes away.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}
