package uibridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mdev84/spyline/go/internal/session"
)

// StateProvider hands the bridge a fresh derived snapshot on demand.
type StateProvider interface {
	State() *session.SessionState
}

// Server is the local HTTP server the presentation layer talks to.
type Server struct {
	provider StateProvider
	manager  *ConnectionManager
	httpSrv  *http.Server
}

// NewServer builds the bridge server on addr.
func NewServer(addr string, provider StateProvider, manager *ConnectionManager) *Server {
	s := &Server{
		provider: provider,
		manager:  manager,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/session/state", s.handleGetState)
	mux.HandleFunc("/ws/session", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: c.Handler(mux),
	}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	log.Info().Str("addr", s.httpSrv.Addr).Msg("ui bridge listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ui bridge server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleGetState handles GET /api/session/state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := s.provider.State()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

// handleWebSocket handles WebSocket upgrades on /ws/session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.UpgradeConnection(w, r); err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
