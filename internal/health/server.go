// Package health provides a lightweight HTTP server exposing liveness and
// Prometheus metrics endpoints during long optimization batches.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-lab/internal/telemetry"
)

// StatusResponse represents the JSON response for the status endpoints.
type StatusResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Run       string `json:"run,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Server serves /health, /live, and /metrics while a pipeline run is active.
type Server struct {
	serviceName string
	version     string
	addr        string
	server      *http.Server
	logger      *logrus.Logger

	mu    sync.RWMutex
	runID string
}

// Config holds the configuration for the status server.
type Config struct {
	ServiceName string
	Version     string
	Addr        string
	Logger      *logrus.Logger
}

// NewServer creates a status server. Addr defaults to :8080.
func NewServer(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &Server{
		serviceName: cfg.ServiceName,
		version:     cfg.Version,
		addr:        addr,
		logger:      cfg.Logger,
	}
}

// SetRun tags status responses with the active run ID.
func (s *Server) SetRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
}

func (s *Server) currentRun() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// Start starts the server in the background and shuts it down when the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/live", s.handleLive)
	mux.Handle("/metrics", telemetry.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"addr":    s.addr,
				"service": s.serviceName,
			}).Info("Status server starting")
		}
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.WithError(err).Error("Status server error")
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	if s.logger != nil {
		s.logger.Info("Status server shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Status:    "ok",
		Service:   s.serviceName,
		Run:       s.currentRun(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Status:  "ok",
		Service: s.serviceName,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
