package statusapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cexdexarb/internal/config"
	"cexdexarb/internal/strategy"
	"cexdexarb/pkg/types"
)

// Server runs the read-only HTTP/WebSocket status API.
type Server struct {
	cfg      config.DashboardConfig
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds a Server. Call BroadcastTransition/BroadcastCycle from
// the engine's wiring of Machine.OnTransition/OnCycleComplete to push
// deltas to connected clients after Start.
func NewServer(cfg config.DashboardConfig, provider StateProvider, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, cfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		handlers: handlers,
		server:   httpServer,
		logger:   logger.With("component", "status-server"),
	}
}

// Start starts the WebSocket hub and the HTTP server. Blocks until Stop
// shuts the server down.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("status dashboard starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping status dashboard")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// BroadcastTransition pushes a state-transition event to all connected
// clients. Wire as Machine.OnTransition.
func (s *Server) BroadcastTransition(prev, next types.StrategyState) {
	s.hub.BroadcastEvent(Event{
		Type:      "transition",
		Timestamp: time.Now(),
		Data:      TransitionView{Prev: prev, Next: next},
	})
}

// BroadcastCycle pushes a completed-cycle event to all connected clients.
// Wire as Machine.OnCycleComplete.
func (s *Server) BroadcastCycle(evt strategy.CycleEvent) {
	s.hub.BroadcastEvent(Event{
		Type:      "cycle",
		Timestamp: time.Now(),
		Data:      cycleView(evt),
	})
}
