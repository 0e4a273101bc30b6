package adminserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server runs the read-only admin HTTP+WS surface (spec §6.4): /health,
// /api/scheduler, /api/exchanges, and /ws streaming scheduler and
// connection-state-transition events. It issues no exchange calls and is
// not a trading surface, grounded on the teacher's dashboard api.Server
// repointed at this domain.
type Server struct {
	provider Provider
	hub      *Hub
	handlers *handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer constructs an admin server bound to port.
func NewServer(port int, provider Provider, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	h := newHandlers(provider, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/scheduler", h.handleScheduler)
	mux.HandleFunc("/api/exchanges", h.handleExchanges)
	mux.HandleFunc("/ws", h.handleWebSocket)

	return &Server{
		provider: provider,
		hub:      hub,
		handlers: h,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "admin-server"),
	}
}

// BroadcastConnectionState pushes a connection-state-transition event to
// every connected /ws observer; called by internal/engine's composite
// OnConnectionState hooks.
func (s *Server) BroadcastConnectionState(exchange, role, state string) {
	s.hub.Broadcast(newEvent("connection_state", ConnectionStateEvent{Exchange: exchange, Role: role, State: state}))
}

// BroadcastTaskExecution pushes a task-execution event to every connected
// /ws observer. No code in this module calls it; task state reaches
// observers through /api/scheduler.
func (s *Server) BroadcastTaskExecution(taskID, symbol, state string, err error) {
	evt := TaskExecutionEvent{TaskID: taskID, Symbol: symbol, State: state}
	if err != nil {
		evt.Err = err.Error()
	}
	s.hub.Broadcast(newEvent("task_execution", evt))
}

// Start runs the hub and serves HTTP until Stop is called; blocks.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("admin server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping admin server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
