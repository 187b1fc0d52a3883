package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sony/gobreaker"

	"github.com/Monpress1/GlobalNews/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"postgres", s.checkPostgres},
		{"store_breaker", s.checkBreaker},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(200, map[string]string{"status": "ready"})
}

func (s *Server) checkPostgres(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// checkBreaker reports unready while the store breaker is open: the feed
// cannot persist or snapshot until the store recovers.
func (s *Server) checkBreaker(context.Context) error {
	if state := s.breaker.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("store circuit breaker is open")
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
