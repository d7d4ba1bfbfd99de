// Package server exposes sessions over HTTP with server-sent events.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sweetpotato0/ai-devteam/pkg/logging"
	"github.com/sweetpotato0/ai-devteam/session"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the session registry.
type Server struct {
	e            *echo.Echo
	registry     *session.Registry
	logger       *slog.Logger
	allowOrigins []string
	defaultMode  string
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllowOrigins sets the CORS allow list.
func WithAllowOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowOrigins = origins
	}
}

// New builds the echo router.
func New(registry *session.Registry, opts ...Option) *Server {
	s := &Server{
		registry:     registry,
		logger:       logging.WithComponent("server"),
		allowOrigins: []string{"*"},
		defaultMode:  string(session.ModeDevTeam),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: s.allowOrigins}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				s.logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.logger.Debug("request", attrs...)
			return nil
		},
	}))

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.GET("/agent/stream", s.stream)
	api.DELETE("/agent/session", s.removeSession)
	api.GET("/agent/history", s.history)
	api.POST("/agent/history/clear", s.clearHistory)
	api.GET("/agent/transcripts", s.transcripts)
	api.POST("/workspace/path", s.setWorkspacePath)
	api.POST("/workspace/activedocument", s.setActiveDocument)

	s.e = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Listen opens a TCP listener, or a unix socket for "unix://" addresses.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		return lc.Listen(ctx, "unix", path)
	}
	return lc.Listen(ctx, "tcp", addr)
}

// Serve serves on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", ln.Addr().String())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
