package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/ent/session"
	"github.com/resumeforge/pipeline/pkg/models"
)

// createSessionHandler handles POST /api/v1/sessions. It bootstraps the
// intake stage and execution row; the Pipeline Coordinator picks the
// session up and drives it through the rest of the stage graph.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if s.submissionLimiter != nil && req.OwnerUserID != "" && !s.submissionLimiter.Allow(req.OwnerUserID) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many session submissions, slow down")
	}

	if err := checkEntitlement(req.OwnerUserID, "pipeline_start"); err != nil {
		return errFeatureNotAvailable(err.Error())
	}

	// A peek at admission load, not a reservation: TryAdmit is still the
	// authoritative check the Coordinator's poll loop makes once this
	// session row exists. A DB error here fails open, same as TryAdmit.
	if s.admitter != nil {
		health := s.admitter.Health(c.Request().Context())
		if health != nil && health.DBReachable && health.GlobalActive >= health.GlobalMax {
			return errCapacityLimit("the service is at capacity, try again shortly")
		}
	}

	sess, err := s.sessionService.CreateSession(c.Request().Context(), models.CreateSessionRequest{
		OwnerUserID: req.OwnerUserID,
		IntakeData:  req.IntakeData,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, &SessionResponse{
		SessionID: sess.ID,
		Status:    string(sess.PipelineStatus),
		Stage:     sess.PipelineStage,
	})
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	sess, err := s.sessionService.GetSession(c.Request().Context(), sessionID, true)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, sess)
}

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	filters := models.SessionFilters{
		OwnerUserID: c.QueryParam("owner_user_id"),
	}

	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filters.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filters.Offset = n
		}
	}
	if v := c.QueryParam("status"); v != "" {
		if err := session.PipelineStatusValidator(session.PipelineStatus(v)); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+v)
		}
		filters.PipelineStatus = v
	}
	if v := c.QueryParam("include_deleted"); v != "" {
		filters.IncludeDeleted = strings.EqualFold(v, "true")
	}
	if v := c.QueryParam("created_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid created_after: must be RFC3339")
		}
		filters.CreatedAfter = &t
	}
	if v := c.QueryParam("created_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid created_before: must be RFC3339")
		}
		filters.CreatedBefore = &t
	}

	result, err := s.sessionService.ListSessions(c.Request().Context(), filters)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// sessionSummaryHandler handles GET /api/v1/sessions/:id/summary. It reports
// the owner-facing progress view: current stage, status, and which sections
// have cleared their section_review gate, read from the durable pipeline
// snapshot rather than re-deriving it from the stage/execution rows.
func (s *Server) sessionSummaryHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	sess, err := s.sessionService.GetSession(c.Request().Context(), sessionID, false)
	if err != nil {
		return mapServiceError(err)
	}

	snapshot := models.LoadPipelineSnapshot(sess)

	return c.JSON(http.StatusOK, &SessionSummaryResponse{
		Session:          sess,
		ApprovedSections: snapshot.ApprovedSections,
		PendingGate:      sess.PendingGate,
	})
}

// cancelSessionHandler handles POST /api/v1/sessions/:id/cancel.
func (s *Server) cancelSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	if err := s.sessionService.CancelSession(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}

	// Abort the in-flight drive loop if this pod happens to own it; a no-op
	// (false return) when the session is queued or owned by another pod.
	if s.pipelineCoordinator != nil {
		s.pipelineCoordinator.Cancel(sessionID)
	}
	if s.gateCoordinator != nil {
		s.gateCoordinator.Forget(sessionID)
	}

	return c.JSON(http.StatusOK, &CancelResponse{
		SessionID: sessionID,
		Message:   "session cancellation requested",
	})
}
