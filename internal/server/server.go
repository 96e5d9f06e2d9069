// ABOUTME: HTTP server for the record store: router setup and graceful run loop.
// ABOUTME: Public health and metrics routes, everything else behind bearer auth under /api/v1.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/cradle/internal/logger"
	"github.com/harperreed/cradle/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxBodyBytes caps request bodies; imports are the largest.
const DefaultMaxBodyBytes = 10 << 20

// Config configures the HTTP layer.
type Config struct {
	JWTSecret      []byte
	AllowedOrigins []string
	MaxBodyBytes   int64
	// RequestTimeout bounds API requests; zero means no bound.
	RequestTimeout time.Duration
}

// Server serves the API for one record store.
type Server struct {
	repo   storage.Repository
	log    *logger.Logger
	cfg    Config
	router *gin.Engine
}

// New builds the router. The JWT secret is required.
func New(repo storage.Repository, log *logger.Logger, cfg Config) (*Server, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{repo: repo, log: log.With("component", "server"), cfg: cfg}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(s.log), Metrics())
	if len(s.cfg.AllowedOrigins) > 0 {
		router.Use(CORS(s.cfg.AllowedOrigins))
	}

	// Public
	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	api := router.Group("/api/v1")
	api.Use(Auth(s.cfg.JWTSecret), s.limitBody)
	if s.cfg.RequestTimeout > 0 {
		api.Use(Timeout(s.cfg.RequestTimeout))
	}
	{
		api.GET("/snapshot", s.getSnapshot)
		api.POST("/mutations", s.postMutation)

		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.putProfile)
		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)

		api.GET("/activities", s.listActivities)
		api.GET("/activities/:id", s.getActivity)
		api.PUT("/activities/:id", s.putActivity)
		api.DELETE("/activities/:id", s.deleteActivity)

		api.GET("/custom-activities", s.listCustomActivities)
		api.PUT("/custom-activities/:id", s.putCustomActivity)
		api.DELETE("/custom-activities/:id", s.deleteCustomActivity)

		api.GET("/growth-records", s.listGrowthRecords)
		api.PUT("/growth-records/:id", s.putGrowthRecord)
		api.DELETE("/growth-records/:id", s.deleteGrowthRecord)

		api.GET("/schedules", s.listSchedules)
		api.PUT("/schedules/:id", s.putSchedule)
		api.DELETE("/schedules/:id", s.deleteSchedule)

		api.GET("/export", s.export)
		api.POST("/import", s.importAccount)
		api.DELETE("/account", s.deleteAccount)
	}
	return router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) limitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	}
	c.Next()
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		s.log.Warn("health check failed", "error", err)
		RespondError(c, http.StatusServiceUnavailable, "unavailable", errors.New("store unavailable"))
		return
	}
	c.String(http.StatusOK, "ok")
}
