package api

import (
	"context"
	"net/http"
	"os"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/pkg/database"
)

// readyHandler handles GET /ready. Narrower than healthHandler: it checks
// only that the database is reachable and that at least one configured LLM
// provider has its API key present in the environment, since those are the
// two dependencies that make this pod able to actually do work rather than
// merely stay alive.
func (s *Server) readyHandler(c *echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")

	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, dbErr := database.Health(reqCtx, s.dbClient.DB())
	dbOK := dbErr == nil

	llmKeyOK := false
	if s.cfg != nil && s.cfg.LLMProviderRegistry != nil {
		for _, provider := range s.cfg.LLMProviderRegistry.GetAll() {
			if provider.APIKeyEnv == "" {
				continue
			}
			if _, ok := os.LookupEnv(provider.APIKeyEnv); ok {
				llmKeyOK = true
				break
			}
		}
	}

	ready := dbOK && llmKeyOK
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, &ReadyResponse{Ready: ready, DBOK: dbOK, LLMKeyOK: llmKeyOK})
}
