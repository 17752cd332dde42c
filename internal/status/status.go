// Package status exposes run progress over HTTP so a long scrape can be
// watched from the side without attaching to the process.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Snapshot is the externally visible state of the current run.
type Snapshot struct {
	Query          string    `json:"current_query"`
	QueriesDone    int       `json:"queries_done"`
	QueriesTotal   int       `json:"queries_total"`
	ItemsCaptured  int       `json:"items_captured"`
	Interferences  int       `json:"consecutive_interferences"`
	LastCheckpoint time.Time `json:"last_checkpoint,omitzero"`
	StartedAt      time.Time `json:"started_at"`
}

// Server serves the snapshot on /status and a liveness probe on /healthz.
type Server struct {
	logger *slog.Logger
	srv    *http.Server

	mu   sync.Mutex
	snap Snapshot
}

// NewServer creates a Server bound to addr. It does not listen until
// Start is called.
func NewServer(logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Update replaces the published snapshot.
func (s *Server) Update(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Addr returns the listener address once Start has succeeded.
func (s *Server) Addr() string { return s.srv.Addr }

// Start begins listening in the background. Listen errors after startup
// are logged, not fatal; the scrape keeps running without its window.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.srv.Addr = ln.Addr().String()
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", "error", err)
		}
	}()
	s.logger.Info("status server listening", "addr", s.srv.Addr)
	return nil
}

// Close shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Warn("status encode failed", "error", err)
	}
}
