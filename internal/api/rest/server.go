package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server represents the REST API server
type Server struct {
	server *http.Server
	router *mux.Router
	logger *logrus.Logger
}

// NewServer creates a new REST API server
func NewServer(port string, deps Deps, logger *logrus.Logger) *Server {
	handler := NewHandler(deps)

	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware)

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Schedule
	api.HandleFunc("/schedule", handler.GetSchedule).Methods("GET")
	api.HandleFunc("/schedule/enriched", handler.GetEnrichedSchedule).Methods("GET")
	api.HandleFunc("/review", handler.GetReview).Methods("GET")

	// Runs
	api.HandleFunc("/runs", handler.ListRuns).Methods("GET")
	api.HandleFunc("/runs", handler.TriggerRun).Methods("POST")
	api.HandleFunc("/runs/latest", handler.GetLatestRun).Methods("GET")
	api.HandleFunc("/runs/{runID}", handler.GetRun).Methods("GET")

	return &Server{
		router: router,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router, for tests
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("REST API listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
