// Package server implements the centrald HTTP server: the REST API over
// the shared store, access-key and JWT auth, and the SSE change feed.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bpd-ops/central/config"
	"github.com/bpd-ops/central/server/api"
	"github.com/bpd-ops/central/server/ws"
	"github.com/bpd-ops/central/store"
)

// Server is the centrald HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	store *store.Store
	hub   *ws.Hub

	routesOnce      sync.Once
	secretOnce      sync.Once
	generatedSecret []byte

	version string
}

// New creates a Server over an open store.
func New(cfg config.Config, st *store.Store, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		logger:  logger,
		store:   st,
		hub:     ws.NewHub(logger),
		version: ver,
	}
}

// Hub exposes the change-feed hub, mainly for tests.
func (s *Server) Hub() *ws.Hub { return s.hub }

// Handler returns the fully routed handler. Useful for httptest.
func (s *Server) Handler() http.Handler {
	s.registerRoutes()
	return s.mux
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9290"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes. Idempotent.
func (s *Server) registerRoutes() {
	s.routesOnce.Do(s.registerRoutesOnce)
}

func (s *Server) registerRoutesOnce() {
	h := &api.Handlers{
		Store:   s.store,
		Hub:     s.hub,
		Logger:  s.logger,
		Version: s.version,
	}

	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	// SSE — auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API — wrapped in auth middleware
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// handleSSE authenticates (header bearer, or query token for
// EventSource clients) and hands the connection to the hub.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if _, err := s.authenticate(token); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.hub.ServeSSE(w, r)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
