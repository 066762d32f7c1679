// Package http provides the HTTP API for documind.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/auth"
)

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	logger  *zap.Logger
	config  Config
	users   *UserHandler
	uploads *UploadHandler
	chats   *ChatHandler
	tokens  *auth.Tokens
}

// NewServer creates the HTTP server with all middleware and routes wired.
func NewServer(cfg Config, tokens *auth.Tokens, users *UserHandler, uploads *UploadHandler, chats *ChatHandler, metrics *HTTPMetrics, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		}))
	}
	if metrics != nil {
		e.Use(metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		logger:  logger,
		config:  cfg,
		users:   users,
		uploads: uploads,
		chats:   chats,
		tokens:  tokens,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.POST("/auth/signup", s.users.Signup)
	api.POST("/auth/signin", s.users.Signin)

	authed := api.Group("", auth.Middleware(s.tokens))
	authed.GET("/auth/me", s.users.Me)

	authed.POST("/upload", s.uploads.Upload)
	authed.GET("/upload", s.uploads.List)
	authed.GET("/upload/:id/status", s.uploads.Status)
	authed.DELETE("/upload/:id", s.uploads.Delete)

	authed.POST("/chat", s.chats.Chat)
	authed.GET("/chat/history/:conversation_id", s.chats.History)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
