package services

import (
	"testing"

	"github.com/resumeforge/pipeline/ent"
)

// setupTestSessionService creates a SessionService for testing.
func setupTestSessionService(_ *testing.T, client *ent.Client) *SessionService {
	return NewSessionService(client)
}
