package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/resumeforge/pipeline/pkg/agent"
)

// generalInstructions is Tier 1, shared by every pipeline-stage agent.
const generalInstructions = `## General Resume-Pipeline Agent Instructions

You are one stage in a multi-stage resume-generation pipeline. Each stage has a
narrow, well-defined responsibility; do not attempt to redo work that belongs
to another stage (e.g. do not re-classify requirements during section writing —
that already happened during gap analysis).

Ground every claim in evidence you can point to:
- **Distinguish sources**: separate what came from the candidate's own intake
  data, what a tool call returned, and what a prior stage concluded. Never
  present your own inference as if it were the candidate's stated fact.
- **Never fabricate evidence**: do not invent employers, metrics, dates, or
  outcomes that do not appear in the intake data, recorded evidence, or prior
  stage output.
- **Report tool failures honestly**: if a tool call errors or returns nothing
  useful, say so rather than silently proceeding as if it had succeeded.
- **Prefer a clarifying question over a guess**: when a detail is ambiguous or
  missing and materially affects the output, escalate it rather than invent it.`

// appendUnavailableToolWarnings adds a warning section when tools failed to
// bind for this execution: a stage config naming a tool the registry
// couldn't resolve degrades rather than aborting the execution.
func appendUnavailableToolWarnings(sections []string, failedTools map[string]string) []string {
	if len(failedTools) == 0 {
		return sections
	}
	var sb strings.Builder
	sb.WriteString("## Unavailable Tools\n\n")
	sb.WriteString("The following tools failed to initialize and are NOT available this run:\n")
	keys := make([]string, 0, len(failedTools))
	for k := range failedTools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", name, failedTools[name]))
	}
	sb.WriteString("\nDo not attempt to call these tools.")
	return append(sections, sb.String())
}

// ComposeInstructions builds the full instruction set for one agent
// execution: Tier 1 general instructions, an unavailable-tools warning if
// any tools failed to bind, and Tier 2 stage-specific custom instructions.
func (b *PromptBuilder) ComposeInstructions(execCtx *agent.ExecutionContext) string {
	sections := []string{generalInstructions}
	sections = appendUnavailableToolWarnings(sections, execCtx.FailedTools)
	if execCtx.Config.CustomInstructions != "" {
		sections = append(sections, "## Stage-Specific Instructions\n\n"+execCtx.Config.CustomInstructions)
	}
	return strings.Join(sections, "\n\n")
}
