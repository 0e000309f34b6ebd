// Package api exposes the HTTP trigger surface for the two pipeline cycles.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reddit_alert/internal/dispatcher"
	"reddit_alert/internal/scanner"
)

// ScanRunner triggers one scan cycle.
type ScanRunner interface {
	Run(ctx context.Context) (scanner.Summary, error)
}

// DrainRunner triggers one dispatch cycle.
type DrainRunner interface {
	Drain(ctx context.Context) (dispatcher.Summary, error)
}

// Server wires the stateless cycle endpoints. Each cycle type has a
// single entry point meant to be hit on a schedule.
type Server struct {
	router  chi.Router
	scanner ScanRunner
	drainer DrainRunner
	log     *slog.Logger
}

// NewServer constructs a Server with its routes.
func NewServer(sc ScanRunner, dr DrainRunner, log *slog.Logger) *Server {
	s := &Server{scanner: sc, drainer: dr, log: log}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	// GET variants exist for cron services that can only issue GETs.
	r.Post("/scan", s.scan)
	r.Get("/scan", s.scan)
	r.Post("/dispatch", s.dispatch)
	r.Get("/dispatch", s.dispatch)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	sum, err := s.scanner.Run(r.Context())
	if err != nil {
		s.log.Error("scan cycle", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "summary": sum})
		return
	}
	// Every keyword failing means the feed itself was unreachable.
	status := http.StatusOK
	if sum.Keywords > 0 && sum.FeedErrors == sum.Keywords {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, sum)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	sum, err := s.drainer.Drain(r.Context())
	if err != nil {
		s.log.Error("dispatch cycle", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "summary": sum})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
