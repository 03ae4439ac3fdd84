// Package web provides an HTTP status server for the door alerter.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/door-alerter/internal/status"
)

// Server serves the status page, JSON status, and Prometheus metrics.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	metrics    *Metrics
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker, metrics: NewMetrics(tracker)}

	mux := http.NewServeMux()
	mux.Handle("/", s.metrics.WrapHandler("index", http.HandlerFunc(s.handleIndex)))
	mux.Handle("/index.html", s.metrics.WrapHandler("index", http.HandlerFunc(s.handleIndex)))
	mux.Handle("/index.json", s.metrics.WrapHandler("json", http.HandlerFunc(s.handleJSON)))
	mux.Handle("/metrics", s.metrics.Handler())

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
