package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// restartWorkflowHandler handles POST /api/v1/workflow/:id/restart. It
// resets a session back to its first stage from its original intake data,
// the follow-up a client makes after benchmarkAssumptionsHandler reports
// restart_required.
func (s *Server) restartWorkflowHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.pipelineCoordinator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "pipeline coordinator not available")
	}

	if err := s.pipelineCoordinator.Restart(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &RestartResponse{
		SessionID: sessionID,
		Message:   "session restarted from intake",
	})
}
