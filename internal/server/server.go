package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sony/gobreaker"

	"github.com/Monpress1/GlobalNews/internal/config"
	"github.com/Monpress1/GlobalNews/internal/feed"
)

// postgresHealthChecker is a minimal interface for PostgreSQL health checks
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

// breakerStateReader reports the store circuit breaker state for readiness checks
type breakerStateReader interface {
	State() gobreaker.State
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	feed      *feed.Service
	db        postgresHealthChecker
	breaker   breakerStateReader
	limits    *ConnectionLimits
	startTime time.Time
}

func NewServer(cfg *config.Config, feedService *feed.Service, db postgresHealthChecker, breaker breakerStateReader) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		feed:      feedService,
		db:        db,
		breaker:   breaker,
		limits:    NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		startTime: time.Now(),
	}

	// Register routes
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
