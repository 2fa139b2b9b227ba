package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

const (
	// DefaultSendBuffer is the number of frames queued per connection.
	DefaultSendBuffer = 256

	writeWait    = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Conn is the part of a WebSocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Frame is the JSON envelope for every message exchanged with clients.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorPayload is implemented by payloads that also carry the frame's error text.
type ErrorPayload interface {
	FrameError() string
}

// Encode builds the wire form of an outbound frame.
func Encode(event string, payload any) ([]byte, error) {
	frame := Frame{Type: event}
	if ep, ok := payload.(ErrorPayload); ok {
		frame.Error = ep.FrameError()
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		frame.Payload = raw
	}
	return json.Marshal(frame)
}

// Client is a registered connection with its outbound queue.
type Client struct {
	ID   string
	conn Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	logger    types.Logger
}

// WritePump writes queued frames to the connection until the queue is closed
// by Unregister. It is the only writer on the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Write failed, closing connection", "connID", c.ID, "error", err)
				c.closeConn()
				c.drain()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closeConn()
				c.drain()
				return
			}
		}
	}
}

// Done is closed when WritePump returns.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// drain discards frames until Unregister closes the queue.
func (c *Client) drain() {
	go func() {
		for range c.send {
		}
	}()
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// Hub tracks live connections and fans frames out to them.
// Deliver never blocks: a connection whose queue is full is closed, and its
// read loop then reports the disconnect.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	bufferSize int
	dropped    atomic.Uint64
	logger     types.Logger
}

// NewHub creates a hub with the given per-connection queue size.
func NewHub(bufferSize int, logger types.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Hub{
		clients:    make(map[string]*Client),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Register adds a connection. The caller must run the returned client's WritePump.
func (h *Hub) Register(id string, conn Conn) *Client {
	client := &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, h.bufferSize),
		done:   make(chan struct{}),
		logger: h.logger,
	}

	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		close(old.send)
	}
	h.clients[id] = client
	h.mu.Unlock()

	h.logger.Debug("Client registered", "connID", id)
	return client
}

// Unregister removes a connection and stops its write pump.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(client.send)
	h.logger.Debug("Client unregistered", "connID", id)
}

// Deliver sends an event to each listed connection. Unknown ids are skipped.
func (h *Hub) Deliver(connIDs []string, event string, payload any) {
	if len(connIDs) == 0 {
		return
	}

	data, err := Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode frame", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if client, ok := h.clients[id]; ok {
			h.enqueue(client, data)
		}
	}
}

// Send delivers an event to a single connection.
func (h *Hub) Send(connID, event string, payload any) {
	h.Deliver([]string{connID}, event, payload)
}

// SendError delivers an error frame to a single connection.
func (h *Hub) SendError(connID, message string) {
	data, err := json.Marshal(Frame{Type: "error", Error: message})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[connID]; ok {
		h.enqueue(client, data)
	}
}

// enqueue must be called with mu held for reading.
func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.dropped.Add(1)
		h.logger.Warn("Send queue full, closing slow connection", "connID", client.ID)
		go client.closeConn()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of frames discarded for full queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// CloseAll closes every connection. Read loops observe the close and
// unregister themselves.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.closeConn()
	}
	return len(clients)
}
