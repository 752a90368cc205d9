package tools

import (
	"context"
	"fmt"

	"github.com/resumeforge/pipeline/pkg/models"
)

// RegisterBuiltins assembles the fixed set of tools every stage config
// draws from. Tool bodies are intentionally thin: domain reasoning (what
// makes a requirement a gap, what makes a bullet defensible) stays with
// the model, and tools here do bookkeeping and gate suspension around that
// reasoning, not the reasoning itself.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(Descriptor{
		Name:        "record_evidence",
		Description: "Record one situation/action/result evidence item in the session's evidence bank.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"situation", "action", "result"},
			"properties": map[string]any{
				"situation":          map[string]any{"type": "string"},
				"action":             map[string]any{"type": "string"},
				"result":             map[string]any{"type": "string"},
				"metrics_defensible": map[string]any{"type": "boolean"},
				"scope_metrics":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
		ParallelSafe: true,
		Executor:     recordEvidence,
	})

	r.MustRegister(Descriptor{
		Name:        "classify_requirement",
		Description: "Classify one job requirement as strong, partial, or gap against the evidence bank.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"requirement_id", "text", "class"},
			"properties": map[string]any{
				"requirement_id": map[string]any{"type": "string"},
				"text":           map[string]any{"type": "string"},
				"class":          map[string]any{"type": "string", "enum": []string{"strong", "partial", "gap"}},
				"evidence_ids":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
		ParallelSafe: true,
		Executor:     classifyRequirement,
	})

	r.MustRegister(Descriptor{
		Name:        "present_to_user",
		Description: "Pause the pipeline and present a panel to the user, waiting for their response before continuing.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"gate_name", "panel"},
			"properties": map[string]any{
				"gate_name": map[string]any{"type": "string"},
				"panel":     map[string]any{"type": "object"},
			},
		},
		ParallelSafe: false,
		Executor:     presentToUser,
	})

	r.MustRegister(Descriptor{
		Name:        "interview_user",
		Description: "Ask the user a clarifying question and wait for a direct answer.",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []string{"question"},
			"properties": map[string]any{"question": map[string]any{"type": "string"}},
		},
		ParallelSafe: false,
		Executor:     interviewUser,
	})

	r.MustRegister(Descriptor{
		Name:        "request_revision",
		Description: "Request that a named section be revised, with a priority and concrete instruction.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"target_section", "issue", "instruction", "priority"},
			"properties": map[string]any{
				"target_section": map[string]any{"type": "string"},
				"issue":          map[string]any{"type": "string"},
				"instruction":    map[string]any{"type": "string"},
				"priority":       map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
			},
		},
		ParallelSafe: false,
		Executor:     requestRevision,
	})
}

func recordEvidence(_ context.Context, tc *Context, input map[string]any) (map[string]any, error) {
	situation, _ := input["situation"].(string)
	action, _ := input["action"].(string)
	result, _ := input["result"].(string)
	if situation == "" || action == "" || result == "" {
		return nil, Validation("situation, action, and result are all required")
	}
	item := models.EvidenceItem{
		Situation: situation,
		Action:    action,
		Result:    result,
	}
	if v, ok := input["metrics_defensible"].(bool); ok {
		item.MetricsDefensible = v
	}
	tc.Note(fmt.Sprintf("evidence:%s:%s", tc.AgentRole, situation), item)
	tc.Emit("evidence_recorded", map[string]any{"situation": situation})
	return map[string]any{"recorded": true}, nil
}

func classifyRequirement(_ context.Context, tc *Context, input map[string]any) (map[string]any, error) {
	reqID, _ := input["requirement_id"].(string)
	class, _ := input["class"].(string)
	if reqID == "" {
		return nil, Validation("requirement_id is required")
	}
	switch models.RequirementClass(class) {
	case models.RequirementStrong, models.RequirementPartial, models.RequirementGap:
	default:
		return nil, Validation("class must be one of strong, partial, gap, got %q", class)
	}
	tc.Emit("requirement_classified", map[string]any{"requirement_id": reqID, "class": class})
	return map[string]any{"requirement_id": reqID, "class": class}, nil
}

func presentToUser(ctx context.Context, tc *Context, input map[string]any) (map[string]any, error) {
	gateName, _ := input["gate_name"].(string)
	if gateName == "" {
		return nil, Validation("gate_name is required")
	}
	panel, _ := input["panel"].(map[string]any)
	if tc.Gate == nil {
		return nil, Execution("no gate coordinator wired for this execution")
	}
	response, err := tc.Gate.WaitForUser(ctx, tc.SessionID, gateName, panel)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ToolError{Kind: ErrorKindCancelled, Msg: err.Error()}
		}
		return nil, Execution("waiting for user response: %v", err)
	}
	return response, nil
}

func interviewUser(ctx context.Context, tc *Context, input map[string]any) (map[string]any, error) {
	question, _ := input["question"].(string)
	if question == "" {
		return nil, Validation("question is required")
	}
	if tc.Gate == nil {
		return nil, Execution("no gate coordinator wired for this execution")
	}
	response, err := tc.Gate.WaitForUser(ctx, tc.SessionID, "interview", map[string]any{"question": question})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ToolError{Kind: ErrorKindCancelled, Msg: err.Error()}
		}
		return nil, Execution("waiting for user response: %v", err)
	}
	return response, nil
}

func requestRevision(_ context.Context, tc *Context, input map[string]any) (map[string]any, error) {
	target, _ := input["target_section"].(string)
	issue, _ := input["issue"].(string)
	instruction, _ := input["instruction"].(string)
	priority, _ := input["priority"].(string)
	if target == "" || issue == "" || instruction == "" {
		return nil, Validation("target_section, issue, and instruction are all required")
	}
	switch models.RevisionPriority(priority) {
	case models.RevisionPriorityHigh, models.RevisionPriorityMedium, models.RevisionPriorityLow:
	default:
		return nil, Validation("priority must be one of high, medium, low, got %q", priority)
	}
	tc.Note("pending_revision", models.RevisionInstruction{
		TargetSection: target,
		Issue:         issue,
		Instruction:   instruction,
		Priority:      models.RevisionPriority(priority),
	})
	return map[string]any{"queued": true, "target_section": target}, nil
}
