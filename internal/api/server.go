// Package api exposes stored ClinVar variants and on-demand evidence
// evaluation over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/internal/middleware"
	"github.com/iliaanaa/genekor/internal/repository"
	"github.com/iliaanaa/genekor/pkg/hgvs"
)

// Version is reported by the health endpoint.
var Version = "dev"

// VariantStore is the read side of the variant repository.
type VariantStore interface {
	Query(ctx context.Context, filter repository.VariantFilter) ([]*domain.VariantRecord, error)
	GetByVariationID(ctx context.Context, id int64) (*domain.VariantRecord, error)
	LatestRelease(ctx context.Context) (*domain.Release, error)
}

// GeneEvaluator evaluates targets against the stored cohort of one gene.
type GeneEvaluator interface {
	EvaluateGene(ctx context.Context, gene string, targets []*domain.VariantRecord) ([]domain.Evaluation, error)
}

// RunRecorder persists the evaluations produced by one request.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *domain.EvaluationRun) error
	SaveEvaluations(ctx context.Context, runID string, evaluations []domain.Evaluation) (int, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Option configures optional server collaborators.
type Option func(*Server)

// WithRunRecorder stores every evaluate request as a run.
func WithRunRecorder(r RunRecorder) Option {
	return func(s *Server) { s.runs = r }
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	variants      VariantStore
	evaluator     GeneEvaluator
	runs          RunRecorder
	validator     *hgvs.Validator
	checks        map[string]HealthCheck
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, variants VariantStore, evaluator GeneEvaluator, logger *logrus.Logger, opts ...Option) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if configManager.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		variants:      variants,
		evaluator:     evaluator,
		validator:     hgvs.NewValidator(),
		checks:        make(map[string]HealthCheck),
		logger:        logger,
		router:        router,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes()

	return server
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
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

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/variants", s.handleListVariants)
		v1.GET("/variants/:id", s.handleGetVariant)
		v1.POST("/evaluate", s.handleEvaluate)
		v1.GET("/release", s.handleRelease)
	}
}

// respondError writes an APIError with the request's correlation ID.
func (s *Server) respondError(c *gin.Context, status int, code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

// respondStoreError maps repository and context errors onto HTTP statuses.
func (s *Server) respondStoreError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, message, err)
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(c, http.StatusGatewayTimeout, domain.ErrCodeRequestTimeout, "request timed out", err)
	default:
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabase, message, err)
	}
}
