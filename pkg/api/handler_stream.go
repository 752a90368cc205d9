package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// streamSessionHandler handles GET /api/v1/sessions/:id/stream. It upgrades
// the response to Server-Sent Events and subscribes to the one channel that
// carries every timeline/stage/gate/revision event for this session; the
// ConnectionManager replays anything missed since Last-Event-ID before
// switching to live delivery.
func (s *Server) streamSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.connManager == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream not available")
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	lastEventID := 0
	if v := c.Request().Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastEventID = n
		}
	}

	h := c.Response().Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	if s.metrics != nil {
		s.metrics.IncSSEConnections()
		defer s.metrics.DecSSEConnections()
	}

	s.connManager.HandleConnection(c.Request().Context(), c.Response().Writer, flusher, []string{sessionID}, lastEventID)
	return nil
}
