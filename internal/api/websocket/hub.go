package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/ingest"
)

// MessageTypeRunCompleted announces a finished run
const MessageTypeRunCompleted = "run_completed"

// ServerMessage is the envelope of every outbound frame
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan ServerMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	totalMessages int64
	metricsMu     sync.Mutex

	logger *logrus.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan ServerMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's main loop; it closes every client when ctx ends
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			h.logger.WithFields(logrus.Fields{"client": c.ID, "clients": n}).Info("WebSocket client connected")
		case c := <-h.unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Register adds a client to the hub; after shutdown the client is closed instead
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues msg for every client; it is dropped when the queue is full
func (h *Hub) Broadcast(msg ServerMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("⚠️  Broadcast buffer full, dropping message")
	}
}

// Name implements ingest.Sink
func (h *Hub) Name() string { return "websocket" }

// Publish implements ingest.Sink by pushing the run summary to every client
func (h *Hub) Publish(_ context.Context, report *ingest.RunReport) error {
	h.Broadcast(ServerMessage{
		Type:      MessageTypeRunCompleted,
		Payload:   report.Summary(),
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// TotalMessages is the number of broadcasts delivered to at least one client
func (h *Hub) TotalMessages() int64 {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.totalMessages
}

func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		h.logger.WithFields(logrus.Fields{"client": c.ID, "clients": len(h.clients)}).Info("WebSocket client disconnected")
	}
}

func (h *Hub) fanOut(msg ServerMessage) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.TrySend(msg) {
			sent++
			continue
		}
		// too slow to keep up
		h.logger.WithField("client", c.ID).Warn("⚠️  Client buffer full, disconnecting")
		go h.Unregister(c)
	}

	if sent > 0 {
		h.metricsMu.Lock()
		h.totalMessages++
		h.metricsMu.Unlock()
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
}
