package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/pkg/database"
	"github.com/resumeforge/pipeline/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Returns a minimal, safe response suitable for unauthenticated access.
// Only this service's own components (database, capacity admission) are
// checked. The external LLM provider is excluded so the orchestrator
// doesn't restart a healthy pod over a flaky upstream.
func (s *Server) healthHandler(c *echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")

	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	_, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.admitter != nil {
		capHealth := s.admitter.Health(reqCtx)
		if capHealth != nil && !capHealth.IsHealthy {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			msg := healthStatusUnhealthy
			if capHealth.DBError != "" {
				msg = capHealth.DBError
			}
			checks["capacity"] = HealthCheck{Status: healthStatusDegraded, Message: msg}
		} else {
			checks["capacity"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	})
}
