package ws

import (
	"context"
	"log"
	"sync"

	"feedsync/internal/domain/listing"
)

type outbound struct {
	kind    listing.Kind
	payload []byte
}

// Hub fans listing notifications out to websocket clients. All membership
// changes happen on the Run goroutine; the mutex only guards reads from
// other goroutines.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client's send channel so the write pumps exit.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			if c != nil {
				h.add(c)
			}
		case c := <-h.unregister:
			if c != nil {
				h.remove(c)
			}
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logf("ws event=connect kinds=%v clients=%d", c.kinds, total)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logf("ws event=disconnect clients=%d", total)
	}
}

// deliver drops clients whose buffer is full instead of blocking the hub.
func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(msg.kind) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, c := range targets {
		select {
		case c.send <- msg.payload:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.remove(c)
	}
	h.logf("ws event=broadcast kind=%s delivered=%d dropped=%d", msg.kind, len(targets)-len(slow), len(slow))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Register and Unregister return without effect once Run has stopped.
func (h *Hub) Register(c *Client) {
	if h == nil {
		return
	}
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	if h == nil {
		return
	}
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) publish(kind listing.Kind, payload []byte) {
	select {
	case h.broadcast <- outbound{kind: kind, payload: payload}:
	default:
		h.logf("ws event=broadcast kind=%s status=dropped reason=buffer_full", kind)
	}
}

func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
