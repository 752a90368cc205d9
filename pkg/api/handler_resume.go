package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/pkg/models"
)

// resumeHandler handles GET /api/v1/sessions/:id/resume. It reports the
// latest approved draft for each section the owner has cleared through its
// section_review gate, read straight from the artifact store rather than
// re-rendering anything: the Section Writer's own output is the rendered
// resume.
func (s *Server) resumeHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.artifactStore == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "artifact store not available")
	}

	sess, err := s.sessionService.GetSession(c.Request().Context(), sessionID, false)
	if err != nil {
		return mapServiceError(err)
	}

	snapshot := models.LoadPipelineSnapshot(sess)
	if len(snapshot.ApprovedSections) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no approved resume sections yet")
	}

	sections := make(map[string]string, len(snapshot.ApprovedSections))
	for _, section := range snapshot.ApprovedSections {
		artifact, err := s.artifactStore.Latest(c.Request().Context(), sessionID, section, models.ArtifactTypeSectionDraft)
		if err != nil || artifact == nil {
			continue
		}
		if content, ok := artifact.Payload["content"].(string); ok {
			sections[section] = content
		}
	}
	if len(sections) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no rendered resume content found")
	}

	return c.JSON(http.StatusOK, &ResumeResponse{
		SessionID: sessionID,
		Sections:  sections,
	})
}
