package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/ent/session"
	"github.com/resumeforge/pipeline/pkg/gate"
	"github.com/resumeforge/pipeline/pkg/models"
)

// stalePipelineThreshold is how long a running session may go without a
// stage transition or gate event before a respond call is refused rather
// than applied to what may be an abandoned worker.
const stalePipelineThreshold = 15 * time.Minute

// resolveGateHandler handles POST /api/v1/sessions/:id/gates/resolve. It
// answers the session's currently pending gate. If nothing is pending yet,
// the (gate_name, tool_call_id) pair is buffered for a later Await call to
// pick up and the response reports Buffered: true. If a gate IS pending but
// gate_name doesn't match it, the request is rejected with 400 rather than
// buffered, since that's answering the wrong gate, not a delivery race.
func (s *Server) resolveGateHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.gateCoordinator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "gate coordinator not available")
	}

	var req ResolveGateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.GateName == "" || req.ToolCallID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "gate_name and tool_call_id are required")
	}

	ctx := c.Request().Context()
	sess, err := s.sessionService.GetSession(ctx, sessionID, false)
	if err != nil {
		return mapServiceError(err)
	}

	if sess.PipelineStatus == session.PipelineStatusRunning && time.Since(sess.UpdatedAt) > stalePipelineThreshold {
		return errStalePipeline("pipeline has not progressed in over 15 minutes; restart the session")
	}

	snapshot := models.LoadPipelineSnapshot(sess)

	decision := gate.Decision{Approve: req.Approve, Reason: req.Reason, Response: req.Response}
	err = s.gateCoordinator.Resolve(ctx, sessionID, &snapshot, req.GateName, req.ToolCallID, decision)
	if err == nil {
		return c.JSON(http.StatusOK, &GateResolvedResponse{
			SessionID: sessionID,
			Buffered:  false,
			Message:   "gate resolved",
		})
	}

	if err == gate.ErrMismatch {
		return echo.NewHTTPError(http.StatusBadRequest, "gate_name does not match the currently pending gate")
	}
	if err != gate.ErrNoGatePending {
		return mapServiceError(err)
	}

	// Nothing pending yet: persist the buffered response so the next Await
	// call on this session (possibly after a pod restart) picks it up.
	raw, encErr := snapshot.ToMetadata()
	if encErr != nil {
		return mapServiceError(encErr)
	}
	if updErr := s.dbClient.Session.UpdateOneID(sessionID).SetSessionMetadata(raw).Exec(ctx); updErr != nil {
		return mapServiceError(updErr)
	}

	return c.JSON(http.StatusOK, &GateResolvedResponse{
		SessionID: sessionID,
		Buffered:  true,
		Message:   "no gate currently pending; response buffered",
	})
}

// revisionStatusHandler handles GET /api/v1/sessions/:id/revisions.
func (s *Server) revisionStatusHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	sess, err := s.sessionService.GetSession(c.Request().Context(), sessionID, false)
	if err != nil {
		return mapServiceError(err)
	}
	snapshot := models.LoadPipelineSnapshot(sess)

	return c.JSON(http.StatusOK, &RevisionStatusResponse{
		SessionID:        sessionID,
		ApprovedSections: snapshot.ApprovedSections,
		RevisionCounts:   snapshot.RevisionCounts,
		RevisionCap:      models.RevisionCap,
	})
}
