// Package prompt provides the centralized prompt builder for every
// pipeline-stage agent. It composes system messages, user messages, and
// instruction hierarchies from a fixed set of tiers, the way the Agent Loop
// expects regardless of which stage is running.
package prompt

// analysisTask is the default task instruction appended to the user
// message for stages that have not set a CustomInstructions-based focus.
const analysisTask = `## Your Task
Use the available tools to complete this stage of the resume, then provide:
1. The concrete output this stage is responsible for producing
2. Any open questions that should be escalated to the user rather than guessed at
3. A brief note on what evidence or prior-stage context the output relies on

Be thorough before concluding; prefer asking a clarifying question over fabricating a detail.`

// forcedConclusionTemplate is the prompt used to force a response once the
// Agent Loop's max-iterations budget is exhausted mid-round.
const forcedConclusionTemplate = `You have reached the iteration limit for this stage (%d iterations).

Conclude now by answering based on what you've already gathered.

**Conclusion guidance:**
- Use the data and tool results you've already collected
- Perfect information is not required — provide the best output you can from what is available
- If something remains unresolved, say so explicitly rather than guessing
- Do not invoke any more tools; respond with text only

%s`

// forcedConclusionFormat is appended to forcedConclusionTemplate. There is
// only one controller strategy (function-calling), so there is no
// strategy-specific variant to select between.
const forcedConclusionFormat = `Provide a clear, structured conclusion that directly fulfills this stage's task.`

// toolSummarizationSystemTemplate is the system prompt for compressing an
// oversized tool result before it re-enters the conversation. A single tool
// result can be large enough to summarize on its own, independent of the
// history's own 30-message compaction.
// %s = tool name, %s = agent role, %d = max summary tokens.
const toolSummarizationSystemTemplate = `You are an expert at summarizing tool output for an ongoing resume-generation task.

Your task is to summarize the result of **%s**, called by the %s agent, in a way that:

1. **Preserves decision-relevant information**: keep every detail the agent needs to proceed
2. **Reduces verbosity**: drop redundant or repeated detail
3. **Stays concise**: keep the summary under %d tokens
4. **Is conclusive**: state explicitly what was found and what was absent, so the agent doesn't re-query

Your summary will be inserted as the tool result in the ongoing conversation.`

// toolSummarizationUserTemplate is the user prompt for tool-result
// summarization. %s = conversation context, %s = tool name, %s = result text.
const toolSummarizationUserTemplate = `Below is the conversation so far, for context on what this agent is trying to accomplish:

=== CONVERSATION START ===
%s
=== CONVERSATION END ===

The agent just called ` + "`%s`" + ` and got the following result:

=== TOOL RESULT START ===
%s
=== TOOL RESULT END ===

Summarize this result for the agent to continue working from. Return ONLY the summary text.`

// finalSummarySystemPrompt is the system prompt for the short summary
// attached to a completed stage execution, surfaced to the user alongside
// the stage's primary artifact.
const finalSummarySystemPrompt = `You write a 1-3 line summary of what a resume-pipeline stage just produced, for a progress indicator a candidate is watching live. Be concrete and factual.`

// finalSummaryUserTemplate is the user prompt for the short stage summary.
// %s = the stage's final output text.
const finalSummaryUserTemplate = `Summarize what this stage produced, in 1-3 lines, facts only:

=================================================================================
%s
=================================================================================

Summary:`

// scoringSystemPrompt is the system prompt for the Quality Reviewer's
// score-extraction turn.
const scoringSystemPrompt = `You are a quality reviewer for a resume-generation pipeline. You evaluate the
drafted resume sections against the job requirements and the candidate's own
evidence bank, and you produce a defensible total score out of 100.

Score on accuracy (no fabricated claims beyond the evidence bank), coverage
(how many job requirements the draft addresses), and writing quality (clear,
quantified, free of filler). State your reasoning, then end with the score
as instructed.`

// scoringInitialPrompt is the user prompt opening the score-evaluation turn.
// %s = prior-stage context (the drafted sections and supporting artifacts),
// %s = the output schema instruction.
const scoringInitialPrompt = `Review the following drafted resume against the job requirements and evidence
bank captured earlier in this pipeline:

=== DRAFT CONTEXT START ===
%s
=== DRAFT CONTEXT END ===

Evaluate accuracy, requirement coverage, and writing quality. %s`

// scoringOutputSchemaReminder re-issues the output-format instruction when a
// prior response didn't end with a parseable score.
const scoringOutputSchemaReminder = `Your previous response didn't end with a parseable score. %s`

// scoringRevisionRequestPrompt asks the reviewer to turn any unresolved
// issues into concrete per-section revision requests rather than free text,
// so the pipeline can parse them back into RevisionInstruction values.
const scoringRevisionRequestPrompt = `Now list any sections that still need work before this resume is ready.

Respond with a JSON array, one object per revision request, each with the
keys "target_section", "issue", "instruction", and "priority" (one of
"high", "medium", "low" — only "high" is dispatched back to section
writing, so reserve it for issues that would embarrass the candidate if
left as-is). If every section already clears the bar, respond with an
empty array: []

Return ONLY the JSON array, no surrounding text.`
