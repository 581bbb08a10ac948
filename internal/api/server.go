package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/auth"
	"trading-alert-engine/internal/engine"
	"trading-alert-engine/internal/events"
)

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AdminTokenHash string
}

// Server exposes alert management over HTTP
type Server struct {
	router     *gin.Engine
	config     ServerConfig
	registry   *alert.Registry
	engine     *engine.Engine
	eventBus   *events.EventBus
	jwtManager *auth.JWTManager
	logger     zerolog.Logger
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	registry *alert.Registry,
	eng *engine.Engine,
	eventBus *events.EventBus,
	jwtManager *auth.JWTManager,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		config:     config,
		registry:   registry,
		engine:     eng,
		eventBus:   eventBus,
		jwtManager: jwtManager,
		logger:     logger.With().Str("component", "APIServer").Logger(),
		startedAt:  time.Now(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/auth/token", s.handleIssueToken)

	api := s.router.Group("/api")
	api.Use(auth.Middleware(s.jwtManager))
	{
		api.POST("/alerts", s.handleCreateAlert)
		api.GET("/alerts", s.handleListAlerts)
		api.GET("/alerts/:id", s.handleGetAlert)
		api.DELETE("/alerts/:id", s.handleDeleteAlert)
		api.POST("/alerts/:id/enable", s.handleEnableAlert)
		api.POST("/alerts/:id/disable", s.handleDisableAlert)

		api.GET("/engine/status", s.handleEngineStatus)
		api.POST("/engine/run", auth.RequireAdmin(), s.handleRunCycle)
	}
}

// Start begins serving HTTP requests. Blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin router, used by tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
