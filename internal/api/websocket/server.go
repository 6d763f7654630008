package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server pushes finished runs to websocket subscribers
type Server struct {
	server *http.Server
	hub    *Hub
	ctx    context.Context
	logger *logrus.Logger
}

// NewServer creates a websocket server around hub; ctx bounds client pumps
func NewServer(ctx context.Context, port string, hub *Hub, logger *logrus.Logger) *Server {
	s := &Server{hub: hub, ctx: ctx, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/runs", s.handleRuns)
	mux.HandleFunc("/ws/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
	}
	return s
}

// Handler exposes the routes, for tests
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start listens until Shutdown
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("WebSocket server listening")
	return s.server.ListenAndServe()
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("⚠️  WebSocket upgrade failed")
		return
	}

	c := NewClient(uuid.NewString(), conn, s.hub)
	s.hub.Register(c)

	go c.WritePump(s.ctx)
	go c.ReadPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "healthy",
		"active_clients": s.hub.ClientCount(),
		"total_messages": s.hub.TotalMessages(),
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
