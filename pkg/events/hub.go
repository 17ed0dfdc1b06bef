// Package events streams committed page moves to websocket subscribers.
//
// A Hub is a tree.Notifier. Register it with tree.WithNotifier and mount it
// as an http.Handler; every client connected to the handler receives each
// MoveEvent as one JSON text message.
package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/surrealdb/pagetree/pkg/tree"
)

const (
	// DefaultBuffer is the number of events queued per client before the
	// client is dropped.
	DefaultBuffer = 16

	writeTimeout = 5 * time.Second
	closeTimeout = time.Second
)

// Message is the envelope written to subscribers.
type Message struct {
	Type  string          `json:"type"`
	Event *tree.MoveEvent `json:"event,omitempty"`
}

type client struct {
	conn *gorilla.Conn
	send chan []byte
	// done is closed once the client is removed from the hub.
	done chan struct{}
}

var _ tree.Notifier = (*Hub)(nil)

// Hub fans move events out to websocket clients.
type Hub struct {
	upgrader gorilla.Upgrader
	log      zerolog.Logger
	buffer   int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type Option func(*Hub)

// WithLogger sets the logger used for connection and delivery errors.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithBuffer sets the per-client queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithCheckOrigin overrides the origin check of the upgrader. The default
// accepts same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		log:     zerolog.Nop(),
		buffer:  DefaultBuffer,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the peer goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseGoingAway, "shutting down"),
			time.Now().Add(closeTimeout))
		conn.Close()
		return
	}
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("event subscriber connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.done)
}

// readLoop discards incoming messages and returns when the connection fails.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("event subscriber read failed")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				h.unregister(c)
				return
			}
			if err := c.conn.WriteMessage(gorilla.TextMessage, msg); err != nil {
				h.log.Debug().Err(err).Msg("event delivery failed")
				h.unregister(c)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(gorilla.CloseMessage,
				gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""),
				time.Now().Add(closeTimeout))
			return
		}
	}
}

// PageMoved broadcasts event to every connected client. A client whose queue
// is full is disconnected instead of blocking the move.
func (h *Hub) PageMoved(_ context.Context, event tree.MoveEvent) {
	msg, err := json.Marshal(Message{Type: "page.moved", Event: &event})
	if err != nil {
		h.log.Error().Err(err).Msg("encode move event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Msg("event subscriber too slow, dropping")
			delete(h.clients, c)
			close(c.done)
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.done)
	}
	return nil
}
