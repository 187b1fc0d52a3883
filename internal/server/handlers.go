package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Monpress1/GlobalNews/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // feed is public, browser clients connect from anywhere
	},
}

// handleWebSocket admits a feed client: acquire connection limits, upgrade,
// register with the feed service (which delivers the snapshot), then pump
// inbound messages until the client disconnects.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("Rejecting connection", "ip", ip, "reason", reason)
		if reason == LimitGlobal {
			return c.String(http.StatusServiceUnavailable, "Connection limit reached")
		}
		return c.String(http.StatusTooManyRequests, "Too many connections from this address")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		metrics.WebSocketConnectionsTotal.WithLabelValues("error").Inc()
		slog.Error("Failed to upgrade connection", "ip", ip, "error", err)
		return nil
	}

	metrics.WebSocketConnectionsTotal.WithLabelValues("success").Inc()
	start := time.Now()
	ctx := c.Request().Context()

	if err := s.feed.Admit(ctx, conn); err != nil {
		slog.Error("Failed to admit connection", "ip", ip, "error", err)
		s.limits.Release(ip)
		conn.Close()
		return nil
	}

	// Read pump (blocks until disconnect)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.feed.HandleMessage(ctx, conn, raw)
	}

	s.feed.Disconnect(conn)
	s.limits.Release(ip)
	conn.Close()
	metrics.WebSocketConnectionDuration.Observe(time.Since(start).Seconds())

	return nil
}
