package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"QuantShield/pkg/http/middleware"
	applogger "QuantShield/pkg/logger"
)

// Handler registers routes on the server's Echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORS            bool
	Logger          *applogger.Logger
	SlowThreshold   time.Duration
}

// Server wraps the Echo HTTP server for the risk API.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
}

// NewServer builds the server with recovery, request metrics, logging,
// and CORS middleware, then registers handler routes and /metrics.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORS:            true,
		SlowThreshold:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover(cfg.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Metrics(cfg.Logger, cfg.SlowThreshold))
	e.Use(middleware.RequestLogging(cfg.Logger))
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodPatch,
				http.MethodDelete,
				http.MethodOptions,
			},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
				echo.HeaderAuthorization,
			},
		}))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{echo: e, config: cfg}
}

// Start begins serving in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	go func() {
		s.logf("http server listening on %s", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logf("http server error: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests within ctx.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logf("http server stopped")
	return nil
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(fmt.Sprintf(format, args...))
		return
	}
	log.Printf(format, args...)
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithHost sets the bind host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

// WithPort sets the bind port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

// WithTimeouts sets read/write/shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithCORS toggles CORS handling.
func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) { c.CORS = enabled }
}

// WithRequestLogger enables structured logging of failed and slow
// requests from the metrics middleware.
func WithRequestLogger(l *applogger.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}
