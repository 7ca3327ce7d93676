package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faultstack/faultline/internal/config"
)

// Server wraps the HTTP server and lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	listener   net.Listener
}

// NewServer constructs an HTTP server bound to the configured address.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, handlers *Handlers) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(logger), Metrics())

	router.GET("/healthz", handlers.Health)
	v1 := router.Group("/api/v1", RateLimit(cfg.RatePerSecond, cfg.RateBurst))
	handlers.Register(v1)

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: lis,
	}, nil
}

// Start serves incoming requests until Shutdown is invoked.
func (s *Server) Start() error {
	if s.httpServer == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown attempts a graceful shutdown, falling back to Close when the
// context expires first.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
	}
}

// Address exposes the bound listener address (useful for tests).
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
