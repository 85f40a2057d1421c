package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/nodeflow/logger"
)

const clientBuffer = 64

// Client is one connected event stream.
type Client struct {
	id     string
	types  []string
	events chan Event
}

// NewClient creates a client that receives events whose type matches one
// of the glob patterns in types, or every event when types is empty.
func NewClient(id string, types ...string) *Client {
	return &Client{
		id:     id,
		types:  types,
		events: make(chan Event, clientBuffer),
	}
}

// ID returns the client id.
func (c *Client) ID() string { return c.id }

// Events returns the channel the stream reads from. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// Accepts reports whether the client wants events of type typ.
func (c *Client) Accepts(typ string) bool {
	if len(c.types) == 0 {
		return true
	}
	for _, pattern := range c.types {
		if ok, err := filepath.Match(pattern, typ); err == nil && ok {
			return true
		}
	}
	return false
}

// Send queues e without blocking. It returns false when the client is too
// slow and the event was dropped.
func (c *Client) Send(e Event) bool {
	select {
	case c.events <- e:
		return true
	default:
		return false
	}
}

// Hub routes published events to registered clients. Run must be running
// for registration and delivery.
type Hub struct {
	log *logger.Logger

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		log:        logger.Get("sse"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", map[string]interface{}{
				"client_id": c.id,
				"clients":   n,
			})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.events)
			}
			h.mu.Unlock()

		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

// Stop ends Run and closes every client stream. It is safe to call more
// than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

// Register adds c. It returns false when the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its stream.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues e for delivery. Publishing never blocks the caller: when
// the queue is full or the hub has stopped, the event is dropped.
func (h *Hub) Publish(e Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- e:
	default:
		h.log.Warn("Event queue full, dropping event", map[string]interface{}{
			"type": e.Type,
		})
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if !c.Accepts(e.Type) {
			continue
		}
		if !c.Send(e) {
			h.log.Warn("Client too slow, dropping event", map[string]interface{}{
				"client_id": id,
				"type":      e.Type,
			})
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}
