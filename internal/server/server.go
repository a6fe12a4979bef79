// Package server exposes the caching fetcher over HTTP.
//
// Endpoints:
//   - POST /v1/assignments            fetch variants for a user
//   - POST /v1/assignments/invalidate drop the cached entry for a user
//   - GET  /health                    liveness plus dependency checks
//   - GET  /metrics                   Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vietddude/flagfetch/internal/core/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Invalidator drops cached assignments.
type Invalidator interface {
	Invalidate(ctx context.Context, user *domain.User, opts *domain.FetchOptions) error
}

// Check is a named dependency probe reported by /health.
type Check struct {
	Name string
	// Critical failures turn /health into 503. Others only degrade it.
	Critical bool
	Probe    func(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInvalidator enables POST /v1/assignments/invalidate.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Server) {
		s.invalidator = inv
	}
}

// WithCheck adds a dependency probe to /health.
func WithCheck(c Check) Option {
	return func(s *Server) {
		s.checks = append(s.checks, c)
	}
}

// Server provides the HTTP API.
type Server struct {
	fetcher     domain.Fetcher
	invalidator Invalidator
	checks      []Check
	logger      *slog.Logger
	server      *http.Server
	listener    net.Listener
}

// NewServer creates a new server listening on port once started.
func NewServer(fetcher domain.Fetcher, port int, opts ...Option) *Server {
	s := &Server{
		fetcher: fetcher,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/assignments", s.handleFetch)
	if s.invalidator != nil {
		mux.HandleFunc("POST /v1/assignments/invalidate", s.handleInvalidate)
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Listen binds the server's port. Bind errors, such as a port already in
// use, are returned here rather than from Start.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Start serves HTTP, binding first if Listen was not called. It blocks until
// the server stops and returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	return s.server.Serve(s.listener)
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// fetchRequest is the body of both assignment endpoints.
type fetchRequest struct {
	User             *domain.User `json:"user"`
	FlagKeys         []string     `json:"flag_keys,omitempty"`
	TracksAssignment *bool        `json:"tracks_assignment,omitempty"`
	TracksExposure   *bool        `json:"tracks_exposure,omitempty"`
}

func (r *fetchRequest) options() *domain.FetchOptions {
	return &domain.FetchOptions{
		FlagKeys:         r.FlagKeys,
		TracksAssignment: r.TracksAssignment,
		TracksExposure:   r.TracksExposure,
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*fetchRequest, bool) {
	var req fetchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return nil, false
	}
	return &req, true
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	variants, err := s.fetcher.Fetch(r.Context(), req.User, req.options())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if variants == nil {
		variants = domain.Variants{}
	}
	writeJSON(w, http.StatusOK, variants)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	if err := s.invalidator.Invalidate(r.Context(), req.User, req.options()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := StatusHealthy
	checks := make(map[string]string, len(s.checks))

	// Aggregate status (worst case wins)
	for _, c := range s.checks {
		if err := c.Probe(r.Context()); err != nil {
			checks[c.Name] = err.Error()
			if c.Critical {
				status = StatusCritical
			} else if status == StatusHealthy {
				status = StatusDegraded
			}
			continue
		}
		checks[c.Name] = "ok"
	}

	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: status, Checks: checks})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
