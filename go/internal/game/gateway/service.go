package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Game is everything the gateway serves: the message surface and room state.
type Game interface {
	GameService
	StateProvider
}

// Service is the game gateway: WebSocket connections, message routing and
// the room state endpoint.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	router            *Router
}

// Config holds configuration for the game gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the game gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates the gateway around an existing connection manager.
// The manager is created up front because the orchestrator broadcasts
// through it.
func NewService(cm *ConnectionManager, game Game) *Service {
	router := NewRouter(game, cm, cm)
	cm.SetHandler(router)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		stateHandler:      NewStateHandler(game),
		router:            router,
	}
}

// Start runs the connection manager until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting game gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("game gateway service stopped")
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("game gateway routes registered")
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
