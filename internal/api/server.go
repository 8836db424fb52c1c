package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/catalog"
	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/feedback"
	"github.com/biostack-engine/internal/middleware"
	"github.com/biostack-engine/internal/pipeline"
)

// StatusSetter applies governance lifecycle transitions to catalog rows.
// The static catalog source has no mutable storage, so the setter is
// optional; admin SKU commands fail cleanly without one.
type StatusSetter interface {
	SetStatus(ctx context.Context, skuID string, status domain.GovernanceStatus) error
}

// ResultCache memoizes full protocol responses. Optional; a nil cache
// means every request runs the pipeline.
type ResultCache interface {
	Key(req *domain.ProtocolRequest, versions domain.Versions) (string, error)
	Get(ctx context.Context, key string) (*domain.ProtocolResponse, bool, error)
	Set(ctx context.Context, key string, resp *domain.ProtocolResponse, ttl time.Duration) error
	InvalidateAll(ctx context.Context) error
}

// PanelFetcher pulls a raw panel from an external lab provider and
// maps it into canonical entries. Optional; without one the
// from-accession endpoint reports the integration as unconfigured.
type PanelFetcher interface {
	Panel(ctx context.Context, accessionID string) ([]domain.PanelEntry, error)
}

// Deps carries everything the HTTP surface serves. Pipeline and Store
// are required; the rest degrade gracefully when nil.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Store    *catalog.Store
	Statuses StatusSetter
	Cache    ResultCache
	Audits   domain.AuditStore
	Labs     PanelFetcher
	Feedback feedback.Store
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	pipeline      *pipeline.Pipeline
	store         *catalog.Store
	governor      domain.Governor
	statuses      StatusSetter
	cache         ResultCache
	audits        domain.AuditStore
	labs          PanelFetcher
	feedback      feedback.Store
	hub           *Hub
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Deps) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(corsMiddleware())

	server := &Server{
		configManager: configManager,
		pipeline:      deps.Pipeline,
		store:         deps.Store,
		governor:      catalog.NewGovernor(deps.Logger),
		statuses:      deps.Statuses,
		cache:         deps.Cache,
		audits:        deps.Audits,
		labs:          deps.Labs,
		feedback:      deps.Feedback,
		hub:           NewHub(deps.Logger),
		router:        router,
		logger:        deps.Logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Hub returns the watch hub so the caller can wire it as a pipeline
// emitter alongside the audit writer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler exposes the configured router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.hub.Close()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/protocol", s.handleProtocol)
		v1.POST("/protocol/from-accession", s.handleProtocolFromAccession)
		v1.GET("/versions", s.handleVersions)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.POST("/runs/:id/feedback", s.handleSaveFeedback)
		v1.GET("/runs/:id/feedback", s.handleListFeedback)

		admin := v1.Group("/admin")
		{
			admin.POST("/commands", s.handleAdminCommand)
			admin.GET("/watch", s.handleWatch)
		}
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
