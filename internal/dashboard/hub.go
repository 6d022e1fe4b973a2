// Package dashboard broadcasts engine.Snapshot updates to WebSocket
// clients, adapted from the teacher's pkg/liveserver hub/server pair to
// the internal/snapshot Envelope/EventKind wire shape instead of the
// teacher's untyped Message{Type,Data}.
package dashboard

import (
	"context"
	"sync"

	"github.com/tommy-ca/gridbot/internal/engine"
	"github.com/tommy-ca/gridbot/internal/snapshot"
	"github.com/tommy-ca/gridbot/internal/strategy"
)

// Client is one connected WebSocket subscriber.
type Client struct {
	id     string
	send   chan snapshot.Envelope
	mu     sync.Mutex
	closed bool
}

// NewClient builds a Client with a buffered send channel, so one slow
// consumer backs up rather than blocking the hub's broadcast loop.
func NewClient(id string) *Client {
	return &Client{id: id, send: make(chan snapshot.Envelope, 256)}
}

// Send enqueues env for delivery, returning false if the client's buffer is
// full or it has already disconnected.
func (c *Client) Send(env snapshot.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Recv returns the channel a write pump should drain.
func (c *Client) Recv() <-chan snapshot.Envelope { return c.send }

// Close marks the client closed and releases its send channel.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

var _ engine.Broadcaster = (*Hub)(nil)

// Hub fans a broadcast stream of snapshot envelopes out to every connected
// Client, dropping slow clients rather than stalling on them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan snapshot.Envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     strategy.Logger
}

// NewHub builds a Hub; Run must be started in a goroutine before clients
// can register.
func NewHub(logger strategy.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan snapshot.Envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run services registration, unregistration, and broadcast until ctx is
// cancelled, at which point every connected client is closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				if !c.Send(env) {
					select {
					case h.unregister <- c:
					default:
					}
				}
			}
		}
	}
}

// Register admits a client to the broadcast set.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the broadcast set.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast implements engine.Broadcaster: it translates an engine
// snapshot into the strategy- and grid-state envelopes the dashboard wire
// protocol defines and queues both, dropping either if the hub's internal
// buffer is saturated rather than blocking the trading loop.
func (h *Hub) Broadcast(s engine.Snapshot) {
	h.enqueue(snapshot.Envelope{EventType: summaryEventKind(s.Grid.StrategyType), Data: s.Summary})
	h.enqueue(snapshot.Envelope{EventType: snapshot.EventGridState, Data: s.Grid})
}

func summaryEventKind(strategyType string) snapshot.EventKind {
	if strategyType == "perp_grid" {
		return snapshot.EventPerpGridSummary
	}
	return snapshot.EventSpotGridSummary
}

func (h *Hub) enqueue(env snapshot.Envelope) {
	select {
	case h.broadcast <- env:
	default:
		if h.logger != nil {
			h.logger.Warn("dashboard broadcast buffer full, dropping envelope", "event_type", string(env.EventType))
		}
	}
}
