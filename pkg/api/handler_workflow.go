package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/pkg/models"
)

// workflowSummaryHandler handles GET /api/v1/workflow/:id. It reports the
// stage graph's progress view the same way sessionSummaryHandler reports
// the owner-facing one, but shaped for a workflow-diagram client: every
// node's pending/active/done position, plus any in-flight replan.
func (s *Server) workflowSummaryHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	sess, err := s.sessionService.GetSession(c.Request().Context(), sessionID, false)
	if err != nil {
		return mapServiceError(err)
	}

	snapshot := models.LoadPipelineSnapshot(sess)
	currentIdx := indexOfStage(snapshot.CurrentStage)

	nodes := make([]WorkflowNodeStatus, 0, len(models.StageGraph))
	for i, stage := range models.StageGraph {
		status := "pending"
		switch {
		case snapshot.CurrentStage == models.StageComplete || i < currentIdx:
			status = "done"
		case i == currentIdx:
			status = "active"
		}
		nodes = append(nodes, WorkflowNodeStatus{Stage: string(stage), Status: status})
	}

	var replanView *WorkflowReplanView
	if snapshot.Replan != nil {
		replanView = &WorkflowReplanView{
			Phase:       string(snapshot.Replan.Phase),
			RequestedAt: snapshot.Replan.RequestedAt.Format(time.RFC3339),
			Reason:      snapshot.Replan.Reason,
		}
	}

	return c.JSON(http.StatusOK, &WorkflowSummaryResponse{
		SessionID:        sessionID,
		Status:           string(sess.PipelineStatus),
		CurrentStage:     string(snapshot.CurrentStage),
		Nodes:            nodes,
		ApprovedSections: snapshot.ApprovedSections,
		PendingGate:      sess.PendingGate,
		Replan:           replanView,
		DraftReady:       snapshot.CurrentStage == models.StageComplete,
	})
}

// indexOfStage returns stage's position in models.StageGraph, or
// len(models.StageGraph) if it isn't a scheduled node (e.g. "complete"),
// so every node renders "done" rather than none of them matching.
func indexOfStage(stage models.StageKey) int {
	for i, s := range models.StageGraph {
		if s == stage {
			return i
		}
	}
	return len(models.StageGraph)
}
