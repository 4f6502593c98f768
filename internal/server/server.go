// Package server provides the HTTP server for the rtspwatch web UI: live
// video, status, arming, zone editing, alert history and gesture bindings.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/rtspwatch/internal/plugin"
	"github.com/ayusman/rtspwatch/internal/server/api"
	"github.com/ayusman/rtspwatch/internal/store"
	"github.com/ayusman/rtspwatch/internal/zone"
)

// Config holds the server configuration. Routes whose collaborator is nil
// are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       api.Controller
	Source    api.SourceStatus
	Zone      *zone.Config
	Events    *EventHub
	Plugins   *plugin.Manager

	// StreamFPS caps the MJPEG frame rate. Zero uses DefaultStreamFPS.
	StreamFPS int
}

// Server represents the HTTP server for the rtspwatch application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	srv    *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		s.mux.Handle("/api/status", api.NewStatusHandler(s.config.App, s.config.Source))
		s.mux.Handle("/api/arm", api.NewArmHandler(s.config.App))
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App, s.config.StreamFPS))
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.Zone != nil {
		s.mux.Handle("/api/zone", api.NewZoneHandler(s.config.Zone))
	}

	if s.config.Store != nil {
		bindings := api.NewBindingHandler(s.config.Store)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
		s.mux.Handle("/api/alerts", api.NewAlertHandler(s.config.Store))
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginHandler(s.config.Plugins))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns
// nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.srv.Addr = addr
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Events != nil {
		s.config.Events.Close()
	}
	return s.srv.Shutdown(ctx)
}
