// Package server exposes the retirement engine over HTTP for the school
// administration frontend.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/config"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/logger"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/retire"
)

// Retirer is the engine surface the HTTP layer depends on.
type Retirer interface {
	Retire(ctx context.Context, ids []int64, reason string) (*retire.Result, error)
	DryRun(ctx context.Context, ids []int64) (*retire.PlanReport, error)
}

// Server wraps the gin engine with the retirement routes.
type Server struct {
	engine  *gin.Engine
	retirer Retirer
	cfg     *config.ServerConfig
	logger  *logger.Logger
}

// New builds the HTTP server. The retirer is injected so handlers can be
// tested without a database.
func New(cfg *config.ServerConfig, retirer Retirer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault()
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	s := &Server{engine: engine, retirer: retirer, cfg: cfg, logger: log}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api/admin/accounts")
	api.POST("/retire", s.handleRetire)
	api.POST("/retire/dry-run", s.handleDryRun)
}

// Engine exposes the underlying router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.engine,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("HTTP server listening on %s", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Infof("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs each request through the structured logger instead of
// gin's default writer.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond).String(),
		)
	}
}
