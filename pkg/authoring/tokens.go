// Package authoring implements the content post-processing invariants used
// by several pipeline stages: size-budgeting of tool output before it is
// stored or summarized, and a lightweight sanitisation/lint pass run over
// drafted resume sections (keyword audit, anti-pattern lint, delimiter
// sanitisation, evidence-integrity probe).
package authoring

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the approximate number of characters per token for
// English text. Used for threshold estimation only, not exact counting.
const charsPerToken = 4

// DefaultStorageMaxTokens caps tool output recorded in ToolInteraction rows
// and timeline events. Protects the trace viewer from rendering massive
// text blobs (a research agent's raw search results can run to hundreds of
// KB).
const DefaultStorageMaxTokens = 8000

// DefaultSummarizationMaxTokens caps tool output before it is handed to the
// summarization LLM call. Safety net so the summarization prompt plus the
// truncated content still fits the model's context window.
const DefaultSummarizationMaxTokens = 100000

// EstimateTokens returns an approximate token count for text, using the
// common ~4 characters per token heuristic for English prose. Intentionally
// approximate: an exact count needs a tokenizer library for marginal benefit
// over a soft, configurable threshold.
//
// len(text) counts bytes, not runes. Multi-byte UTF-8 content (accented
// names, non-Latin scripts in a candidate's resume) inflates the estimate,
// which only makes summarization trigger a little earlier than necessary —
// the safe direction to err.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// truncateAtLineBoundary cuts content at the last newline before maxChars,
// avoiding a mid-line split that would mangle indented JSON or bullet lists.
func truncateAtLineBoundary(content string, maxChars int, marker string) string {
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	truncated := content[:cut]
	if idx := strings.LastIndex(truncated, "\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + fmt.Sprintf(
		"\n\n[TRUNCATED: %s — original size: %s, limit: %s]",
		marker, formatSize(len(content)), formatSize(maxChars),
	)
}

func formatSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%dB", bytes)
	}
	return fmt.Sprintf("%dKB", bytes/1024)
}

// TruncateForStorage truncates tool output before it is written to a
// ToolInteraction record or a completed timeline event. Applied to every
// raw result regardless of whether summarization also triggers.
func TruncateForStorage(content string) string {
	return truncateAtLineBoundary(content, DefaultStorageMaxTokens*charsPerToken,
		"output exceeded storage display limit")
}

// TruncateForSummarization truncates tool output before it is sent to the
// summarization LLM call. Uses a larger limit than storage truncation so
// the summarizer still has the bulk of the data to work with.
func TruncateForSummarization(content string) string {
	return truncateAtLineBoundary(content, DefaultSummarizationMaxTokens*charsPerToken,
		"output exceeded summarization input limit")
}
