package api

import (
	echo "github.com/labstack/echo/v5"
)

// metricsHandler handles GET /metrics, serving the pod's Prometheus
// exposition text: HTTP status-class counters, request latency, current SSE
// connection count, and cumulative token usage.
func (s *Server) metricsHandler(c *echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	s.metrics.Handler().ServeHTTP(c.Response().Writer, c.Request())
	return nil
}
