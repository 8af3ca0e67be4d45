package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/config"
	"github.com/swift-fca/swift/internal/logger"
	"github.com/swift-fca/swift/internal/websocket"
)

// Server runs conversion jobs behind an HTTP API and streams their
// progress over a websocket.
type Server struct {
	logger  *logger.Logger
	router  *mux.Router
	server  *http.Server
	wsHub   *websocket.Hub
	jobs    *registry
	limiter *clientLimiter

	// jobs run under ctx so that Stop cancels them
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	config *config.Config
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:  log.WithComponent("server"),
		router:  mux.NewRouter(),
		wsHub:   websocket.NewHub(websocket.HubConfigFrom(cfg.WebSocket), log.Logger),
		jobs:    newRegistry(cfg.Server.MaxJobs),
		limiter: newClientLimiter(cfg.Server.RequestsPerMin),
		ctx:     ctx,
		cancel:  cancel,
		config:  cfg,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if ws := s.currentConfig().WebSocket; ws.Enabled {
		s.router.HandleFunc(ws.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(requestIDMiddleware, s.loggingMiddleware, s.rateLimitMiddleware)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleStopJob).Methods(http.MethodDelete)
	api.HandleFunc("/browse", s.handleBrowse).Methods(http.MethodPost)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodPost)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the websocket hub job events are broadcast on
func (s *Server) Hub() *websocket.Hub { return s.wsHub }

// Start runs the websocket hub and serves HTTP until Stop is called
func (s *Server) Start() error {
	cfg := s.currentConfig()
	s.logger.Info("Starting swift daemon",
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_jobs", cfg.Server.MaxJobs),
		zap.Bool("websocket", cfg.WebSocket.Enabled),
	)

	go s.wsHub.Run(s.ctx)
	go s.limiter.run(s.ctx)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop cancels running jobs and gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping swift daemon", zap.Int("running_jobs", s.jobs.running()))
	s.cancel()
	err := s.server.Shutdown(ctx)
	s.jobs.wait(ctx)
	return err
}

// UpdateConfig replaces the profile that jobs started from now on use.
// Running jobs keep the settings they started with.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	s.logger.Info("Configuration reloaded")
}

func (s *Server) currentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"timestamp":    time.Now().Format(time.RFC3339),
		"running_jobs": s.jobs.running(),
		"clients":      s.wsHub.ClientCount(),
	})
}
