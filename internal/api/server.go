// Package api provides the HTTP API and event stream for deskhook.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"deskhook/internal/config"
	"deskhook/internal/protocol"
)

// Provider exposes the state of a running core.
type Provider interface {
	// Snapshot returns the state as of the last completed tick. It may be
	// nil before the first tick.
	Snapshot() *protocol.Snapshot
	SetPaused(paused bool)
}

// Server provides the HTTP API and the /ws event stream
type Server struct {
	configMgr *config.Manager
	provider  Provider
	version   string
	hub       *Hub
	hubOnce   sync.Once
	logger    *log.Logger
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, provider Provider, version string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		configMgr: configMgr,
		provider:  provider,
		version:   version,
		logger:    logger,
	}
	s.hub = newHub(s)
	return s
}

// SetProvider replaces the state provider. It must be called before the
// server starts handling requests.
func (s *Server) SetProvider(p Provider) {
	s.provider = p
}

// Handler returns the full middleware-wrapped handler and starts the hub.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.hub.run() })

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/windows", s.handleWindows)
	mux.HandleFunc("/api/input", s.handleInput)
	mux.HandleFunc("/api/overlays", s.handleOverlays)
	mux.HandleFunc("/api/pause", s.handlePause)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves until ctx is done. The listen address comes from the api
// section of the configuration.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configMgr.Get()
	host := cfg.API.Addr
	if host == "" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.API.Port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", addr, err)
	}
	s.logger.Printf("API: Listening on %s", ln.Addr())

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		s.hub.stop()
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Broadcast queues msg for every connected client. It never blocks; when
// the hub is backed up the message is dropped.
func (s *Server) Broadcast(msg protocol.Message) {
	s.hub.Broadcast(msg)
}

// Clients returns the number of connected stream clients.
func (s *Server) Clients() int {
	return s.hub.Len()
}

// Close stops the hub and disconnects all stream clients.
func (s *Server) Close() {
	s.hub.stop()
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Printf("API: panic serving %s: %v", r.URL.Path, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured. Browsers cannot set headers
// on a WebSocket upgrade, so the token may also come as ?token=.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if token := s.configMgr.Get().API.Token; token != "" {
			authorized := r.Header.Get("Authorization") == "Bearer "+token ||
				r.URL.Query().Get("token") == token
			if !authorized {
				s.logger.Printf("API: Rejected %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) snapshot() *protocol.Snapshot {
	if snap := s.provider.Snapshot(); snap != nil {
		return snap
	}
	return &protocol.Snapshot{}
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.snapshot()
	writeJSON(w, map[string]any{
		"version":        s.version,
		"frame":          snap.Frame,
		"enabled":        snap.Enabled,
		"paused":         snap.Paused,
		"modules":        snap.Modules,
		"windows":        len(snap.Windows),
		"overlays":       len(snap.Overlays),
		"held":           len(snap.HeldKeys) + len(snap.HeldButtons),
		"scale":          snap.Scale,
		"taskbar":        snap.Taskbar,
		"dropped_events": snap.DroppedEvents,
		"clients":        s.hub.Len(),
	})
}

// handleWindows handles GET /api/windows
func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.snapshot().Windows)
}

// handleInput handles GET /api/input
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.snapshot()
	writeJSON(w, map[string]any{
		"frame":        snap.Frame,
		"keys":         snap.HeldKeys,
		"buttons":      snap.HeldButtons,
		"cursor":       snap.Cursor,
		"cursor_delta": snap.CursorDelta,
	})
}

// handleOverlays handles GET /api/overlays
func (s *Server) handleOverlays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.snapshot().Overlays)
}

// handlePause handles POST /api/pause?paused=true|false
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	paused, err := strconv.ParseBool(r.URL.Query().Get("paused"))
	if err != nil {
		http.Error(w, "Missing or invalid paused parameter", http.StatusBadRequest)
		return
	}

	s.logger.Printf("API: Setting paused=%v (request from %s)", paused, r.RemoteAddr)
	s.provider.SetPaused(paused)
	writeJSON(w, map[string]any{"status": "ok", "paused": paused})
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.configMgr.Get())

	case http.MethodPost:
		// start from the current values so partial documents only touch what they name
		newCfg := s.configMgr.Get()
		if err := json.NewDecoder(r.Body).Decode(newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		s.logger.Printf("API: Receiving configuration update from %s", r.RemoteAddr)

		if err := s.configMgr.Set(newCfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.configMgr.Save(); err != nil {
			s.logger.Printf("API: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
