package sse

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/logger"
)

// Client represents a connected SSE client.
type Client struct {
	id       string            // Unique client ID
	filter   string            // Glob over component names
	metadata map[string]string // Optional metadata (remote address, etc.)
	events   chan []byte       // Encoded frames for the client
	once     sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata adds a metadata key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) {
		c.metadata[key] = value
	}
}

// WithFilter restricts the client to components whose name matches the glob
// pattern. The default "*" matches every component.
func WithFilter(pattern string) ClientOption {
	return func(c *Client) {
		if pattern != "" {
			c.filter = pattern
		}
	}
}

// NewClient creates a new SSE client with optional metadata.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		filter:   "*",
		metadata: make(map[string]string),
		events:   make(chan []byte, 256), // Buffered channel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Filter returns the client's component glob.
func (c *Client) Filter() string {
	return c.filter
}

// Metadata returns all client metadata.
func (c *Client) Metadata() map[string]string {
	return c.metadata
}

// Matches reports whether the client subscribes to component. A malformed
// filter matches nothing.
func (c *Client) Matches(component string) bool {
	ok, err := filepath.Match(c.filter, component)
	return err == nil && ok
}

// Events returns the channel for receiving encoded frames.
func (c *Client) Events() <-chan []byte {
	return c.events
}

// Send queues a frame for the client.
// Returns false if the channel is full (client is slow).
func (c *Client) Send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		logger.Warn("[SSE] Client channel full, dropping message", map[string]interface{}{
			"client_id": c.id,
		})
		return false
	}
}

// Close closes the client's event channel. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.events) })
}

// Message is a broadcast waiting for the hub loop.
type Message struct {
	Component string // Matched against client filters
	Frame     []byte // Encoded SSE frame
}

// Hub manages SSE client connections and message broadcasting.
// Clients can only register while the hub loop runs.
type Hub struct {
	clients    map[string]*Client // client ID -> Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	seq        atomic.Uint64

	mu      sync.RWMutex
	running bool
	done    chan struct{} // closed whenever the loop is not running
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	done := make(chan struct{})
	close(done)
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       done,
	}
}

// Run runs the hub loop until ctx is canceled, then disconnects every
// client. It returns immediately if the loop is already running.
func (h *Hub) Run(ctx context.Context) {
	if !h.begin() {
		return
	}
	h.loop(ctx)
}

// begin marks the hub running. It reports false if it already was.
func (h *Hub) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return false
	}
	h.running = true
	h.done = make(chan struct{})
	return true
}

func (h *Hub) loop(ctx context.Context) {
	defer h.end()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE_HUB] Client registered", map[string]interface{}{
				"client_id":     client.id,
				"filter":        client.filter,
				"total_clients": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE_HUB] Client unregistered", map[string]interface{}{
				"client_id":     client.id,
				"total_clients": total,
			})

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// end disconnects all clients and drops queued broadcasts.
func (h *Hub) end() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	for len(h.broadcast) > 0 {
		<-h.broadcast
	}
	h.running = false
	close(h.done)
	logger.Debug("[SSE_HUB] All clients closed during shutdown")
}

// Running reports whether the hub loop is running.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) stopped() chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

// Register adds a client to the hub. It fails with CONFLICT when the hub
// loop is not running.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.stopped():
		return errors.Conflict("event stream is not running")
	}
}

// Unregister removes a client from the hub. A stopped hub has already
// disconnected every client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped():
	}
}

// Broadcast implements Broadcaster.
func (h *Hub) Broadcast(component, eventType string, data []byte) bool {
	if !h.Running() {
		return false
	}
	msg := &Message{Component: component, Frame: frame(eventType, h.seq.Add(1), data)}
	select {
	case h.broadcast <- msg:
		return true
	default:
		logger.Warn("[SSE_HUB] Broadcast queue full, dropping event", map[string]interface{}{
			logger.FieldComponent: component,
			"event":               eventType,
		})
		return false
	}
}

// deliver sends msg to matching clients. Called from the hub loop.
func (h *Hub) deliver(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matchCount := 0
	for _, client := range h.clients {
		if client.Matches(msg.Component) && client.Send(msg.Frame) {
			matchCount++
		}
	}

	logger.Debug("[SSE_HUB] Broadcast sent", map[string]interface{}{
		logger.FieldComponent: msg.Component,
		"match_count":         matchCount,
		"total_clients":       len(h.clients),
		"data_size":           len(msg.Frame),
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns a list of all connected client IDs.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Client returns a client by ID, or nil if not found.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

var _ Broadcaster = (*Hub)(nil)
