package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/config"
	"example.com/backstage/services/livestock/internal/api/handlers"
	"example.com/backstage/services/livestock/internal/api/middleware"
	"example.com/backstage/services/livestock/internal/metrics"
	"example.com/backstage/services/livestock/internal/projector"
	"example.com/backstage/services/livestock/internal/repositories"
	"example.com/backstage/services/livestock/internal/search"
	"example.com/backstage/services/livestock/internal/services"
	"example.com/backstage/services/livestock/internal/tracing"
)

// Deps bundles everything the HTTP surface exposes
type Deps struct {
	Registrations    *services.RegistrationService
	Inseminations    *services.InseminationService
	Fathers          *services.FatherService
	Projector        *projector.Projector
	RegistrationRepo *repositories.RegistrationRepository
	Elastic          *search.ElasticClient
	Metrics          *metrics.Metrics
	Tracer           tracing.Tracer
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	deps       Deps
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, deps Deps) *Server {
	server := &Server{
		config: cfg,
		deps:   deps,
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log.Logger))

	// Register handlers
	handlers.NewAnimalsHandler(s.deps.Projector, s.deps.Tracer).RegisterRoutes(router)
	handlers.NewRegistrationsHandler(s.deps.Registrations, s.deps.RegistrationRepo, s.deps.Elastic, s.deps.Tracer).RegisterRoutes(router)
	handlers.NewInseminationsHandler(s.deps.Inseminations, s.deps.Tracer).RegisterRoutes(router)
	handlers.NewFathersHandler(s.deps.Fathers, s.deps.Tracer).RegisterRoutes(router)
	handlers.NewMetricsHandler(s.deps.Metrics, s.deps.Tracer).RegisterRoutes(router)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
