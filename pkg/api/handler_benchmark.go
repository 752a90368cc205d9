package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/pkg/pipeline"
)

// benchmarkAssumptionsHandler handles POST
// /api/v1/workflow/:id/benchmark/assumptions. It announces a mid-run
// benchmark-assumption change to the Pipeline Coordinator, which rewinds to
// gap_analysis at the next safe checkpoint unless section writing has
// already started, in which case the caller must re-submit with
// confirm_rebuild=true and then call the restart route.
func (s *Server) benchmarkAssumptionsHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.pipelineCoordinator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "pipeline coordinator not available")
	}

	var req BenchmarkAssumptionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	restartRequired, err := s.pipelineCoordinator.RequestReplan(c.Request().Context(), sessionID, req.Reason, req.ConfirmRebuild)
	if err != nil {
		if errors.Is(err, pipeline.ErrBenchmarkRebuildConfirmRequired) {
			return errBenchmarkRebuildConfirmRequired("benchmark assumptions changed after section writing started; resubmit with confirm_rebuild=true")
		}
		return mapServiceError(err)
	}

	phase := "requested"
	if restartRequired {
		phase = "restart_required"
	}

	return c.JSON(http.StatusOK, &BenchmarkAssumptionsResponse{
		SessionID: sessionID,
		Phase:     phase,
	})
}
