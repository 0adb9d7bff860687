// Package server exposes pipeline runs over HTTP: starting runs, polling
// their status, downloading results, managing history and streaming live
// progress over a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"github.com/valter-silva-au/ai-dev-team/internal/observability"
	"github.com/valter-silva-au/ai-dev-team/internal/storage"
)

// Server serves the run API.
type Server struct {
	launcher core.RunLauncher
	registry *storage.ResultRegistry
	history  storage.HistoryStore
	hub      *WSHub
	mux      *http.ServeMux
	baseCtx  context.Context
}

// New creates a Server. history may be nil, in which case only runs started
// by this process are visible. bus may be nil to disable /ws/events.
func New(ctx context.Context, launcher core.RunLauncher, registry *storage.ResultRegistry, history storage.HistoryStore, bus *observability.EventBus) *Server {
	s := &Server{
		launcher: launcher,
		registry: registry,
		history:  history,
		mux:      http.NewServeMux(),
		baseCtx:  ctx,
	}
	if bus != nil {
		s.hub = NewWSHub(bus)
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/start", s.handleStart)
	s.mux.HandleFunc("GET /api/status/{id}", s.handleStatus)
	s.mux.HandleFunc("GET /api/download/{id}", s.handleDownload)
	s.mux.HandleFunc("GET /api/files/{id}", s.handleFiles)
	s.mux.HandleFunc("GET /api/history", s.handleListHistory)
	s.mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	s.mux.HandleFunc("GET /api/history/{id}", s.handleGetHistory)
	s.mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if s.hub != nil {
		s.mux.HandleFunc("GET /ws/events", s.hub.HandleWebSocket)
	}
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and
// waits for in-flight runs to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	s.launcher.Wait()
	return nil
}

// corsMiddleware adds permissive CORS headers so a browser UI on another
// origin can call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
