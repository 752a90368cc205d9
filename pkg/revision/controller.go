// Package revision implements the Revision Controller: it turns the
// Quality Reviewer's list of requested edits into a bounded set of section
// rewrites, enforcing the per-section revision cap and the
// high-priority-only dispatch filter. State (counts, approved sections)
// lives on the session's PipelineSnapshot, not here — the Controller is
// stateless between calls, the same way the chat executor's dispatcher
// holds only an in-flight registry and reads everything else from the
// database on each call.
package revision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/models"
)

// ErrCapReached is returned by Admit when a section has already spent its
// full revision budget and the instruction is dropped rather than queued.
var ErrCapReached = fmt.Errorf("revision: section has reached its revision cap")

// Controller filters and dispatches revision instructions, enforcing one
// in-flight revision per section at a time.
type Controller struct {
	publisher *events.EventPublisher

	mu       sync.Mutex
	inFlight map[string]bool // "sessionID:section" -> dispatch in progress
}

// New creates a Controller that publishes revision.limit_reached events
// through publisher.
func New(publisher *events.EventPublisher) *Controller {
	return &Controller{
		publisher: publisher,
		inFlight:  make(map[string]bool),
	}
}

// Filter applies the two dispatch filters from the Quality Reviewer's raw
// instruction list, in order: (1) only RevisionPriorityHigh instructions
// ever reach a section rewrite; (2) a section already in the approved set
// is never revised again even if flagged high priority, since approval is
// a one-way door within a session.
func Filter(instructions []models.RevisionInstruction, snapshot *models.PipelineSnapshot) []models.RevisionInstruction {
	out := make([]models.RevisionInstruction, 0, len(instructions))
	for _, inst := range instructions {
		if inst.Priority != models.RevisionPriorityHigh {
			continue
		}
		if snapshot.IsSectionApproved(inst.TargetSection) {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// Admit checks inst's section against the revision cap and, if room
// remains, increments the snapshot's counter and returns true. Once a
// section hits models.RevisionCap, Admit returns (false, ErrCapReached) and
// publishes revision.limit_reached so the client can surface it; the
// section is then left as-is for the remainder of the run.
func (c *Controller) Admit(ctx context.Context, sessionID string, snapshot *models.PipelineSnapshot, inst models.RevisionInstruction) (bool, error) {
	if snapshot.RevisionCountFor(inst.TargetSection) >= models.RevisionCap {
		if c.publisher != nil {
			_ = c.publisher.PublishRevisionLimitReached(ctx, sessionID, events.RevisionLimitPayload{
				Type:       "revision.limit_reached",
				SessionID:  sessionID,
				SectionKey: inst.TargetSection,
				Count:      snapshot.RevisionCountFor(inst.TargetSection),
				Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			})
		}
		return false, ErrCapReached
	}
	snapshot.IncrementRevisionCount(inst.TargetSection)
	return true, nil
}

// TryReserve claims the single in-flight revision slot for (sessionID,
// section), returning false if a revision for that section is already
// being worked. Callers must call Release once the rewrite completes or
// fails.
func (c *Controller) TryReserve(sessionID, section string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := sessionID + ":" + section
	if c.inFlight[key] {
		return false
	}
	c.inFlight[key] = true
	return true
}

// Release frees the in-flight slot claimed by TryReserve.
func (c *Controller) Release(sessionID, section string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, sessionID+":"+section)
}

// Plan filters and admits a batch of instructions in one call, returning
// only the instructions that passed both the priority/approval filter and
// the revision cap. Capped or filtered-out instructions are silently
// dropped from the plan; the cap ones have already been reported via
// revision.limit_reached inside Admit.
func (c *Controller) Plan(ctx context.Context, sessionID string, snapshot *models.PipelineSnapshot, instructions []models.RevisionInstruction) []models.RevisionInstruction {
	filtered := Filter(instructions, snapshot)
	plan := make([]models.RevisionInstruction, 0, len(filtered))
	for _, inst := range filtered {
		if ok, err := c.Admit(ctx, sessionID, snapshot, inst); ok && err == nil {
			plan = append(plan, inst)
		}
	}
	return plan
}
