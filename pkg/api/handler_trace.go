package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// getTimelineHandler handles GET /api/v1/sessions/:id/timeline.
func (s *Server) getTimelineHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.timelineService == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "timeline service not available")
	}

	events, err := s.timelineService.GetSessionTimeline(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, events)
}

// getLLMInteractionHandler handles
// GET /api/v1/sessions/:id/trace/llm/:interaction_id.
func (s *Server) getLLMInteractionHandler(c *echo.Context) error {
	interactionID := c.Param("interaction_id")
	if interactionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "interaction id is required")
	}
	if s.interactionService == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "interaction service not available")
	}

	interaction, err := s.interactionService.GetLLMInteractionDetail(c.Request().Context(), interactionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, interaction)
}

// getToolInteractionHandler handles
// GET /api/v1/sessions/:id/trace/tool/:interaction_id.
func (s *Server) getToolInteractionHandler(c *echo.Context) error {
	interactionID := c.Param("interaction_id")
	if interactionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "interaction id is required")
	}
	if s.interactionService == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "interaction service not available")
	}

	interaction, err := s.interactionService.GetToolInteractionDetail(c.Request().Context(), interactionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, interaction)
}
