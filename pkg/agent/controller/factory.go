// Package controller provides agent type implementations for controllers.
package controller

import (
	"fmt"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/config"
)

// Factory creates controllers by agent type.
// Implements agent.ControllerFactory.
type Factory struct{}

// NewFactory creates a new controller factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateController builds a Controller for the given agent type.
func (f *Factory) CreateController(agentType config.AgentType, execCtx *agent.ExecutionContext) (agent.Controller, error) {
	switch agentType {
	case config.AgentTypeDefault, config.AgentTypeOrchestrator:
		// The orchestrator role (section_writer) runs the same iteration
		// loop as any other stage agent; what makes it an orchestrator is
		// the dispatch_agent/cancel_agent/list_agents tools wired into its
		// ToolExecutor, not a distinct controller.
		return NewIteratingController(), nil
	case config.AgentTypeScoring:
		return NewScoringController(), nil
	default:
		return nil, fmt.Errorf("unknown agent type: %q", agentType)
	}
}
