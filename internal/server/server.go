// Package server provides the HTTP control server setup and routing
// configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kvasnell/telezap/internal/api"
	"github.com/kvasnell/telezap/internal/channels"
	"github.com/kvasnell/telezap/internal/config"
	"github.com/kvasnell/telezap/internal/db"
	"github.com/kvasnell/telezap/internal/logger"
	"github.com/kvasnell/telezap/internal/middleware"
	"github.com/kvasnell/telezap/internal/preflight"
	"github.com/kvasnell/telezap/internal/resolver"
	"github.com/kvasnell/telezap/internal/session"
	"github.com/kvasnell/telezap/internal/timesync"
)

// Server represents the HTTP control server
type Server struct {
	config     *config.Config
	db         *db.DB
	repos      *db.Repositories
	channels   *channels.Service
	engine     *timesync.Engine
	guard      *preflight.Guard
	endpoint   *resolver.Endpoint
	controller *session.Controller
	router     *gin.Engine
	server     *http.Server
}

// New creates a new control server instance
func New(
	cfg *config.Config,
	database *db.DB,
	repos *db.Repositories,
	channelService *channels.Service,
	engine *timesync.Engine,
	guard *preflight.Guard,
	endpoint *resolver.Endpoint,
	controller *session.Controller,
) *Server {
	return &Server{
		config:     cfg,
		db:         database,
		repos:      repos,
		channels:   channelService,
		engine:     engine,
		guard:      guard,
		endpoint:   endpoint,
		controller: controller,
	}
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	gate := middleware.PreflightGate(s.guard)

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db)
	api.SetupControlRoutes(apiGroup, api.NewControlHandler(s.controller, s.engine, s.guard, s.repos.Settings, s.endpoint), gate)
	api.SetupChannelRoutes(apiGroup, api.NewChannelsHandler(s.channels), gate)
}

// Start starts the HTTP control server
func (s *Server) Start() error {
	s.setupRouter()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting control server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and releases any open stream
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Release the stream before the process exits
	s.controller.Stop()

	// Stop the periodic resync loop
	if s.engine != nil {
		s.engine.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
