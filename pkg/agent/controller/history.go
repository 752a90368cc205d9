package controller

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/resumeforge/pipeline/pkg/agent"
)

// historyCompactionThreshold is the message-list length that triggers
// compaction. historyRecentKeep is how many of the most recent messages
// survive compaction untouched.
const (
	historyCompactionThreshold = 30
	historyRecentKeep          = 20
)

// resumeSectionNames are the section headings compactSummary looks for when
// scanning dropped messages — not an exhaustive list of every section a
// blueprint could name, just the ones common enough to be worth calling out
// in a compaction summary.
var resumeSectionNames = []string{
	"summary", "experience", "education", "skills", "projects",
	"certifications", "awards", "publications", "volunteer experience", "languages",
}

// outcomeVerbs flag resume bullets that describe a measurable result, as
// opposed to a bare responsibility statement.
var outcomeVerbs = []string{
	"increased", "reduced", "improved", "grew", "achieved", "delivered",
	"saved", "generated", "cut", "boosted", "accelerated",
}

var percentPattern = regexp.MustCompile(`\b\d+(\.\d+)?%`)

// compactHistory enforces the conversation's history-compaction invariant:
// once the message list passes historyCompactionThreshold, keep the fixed
// system/user head the stage was given, drop everything in the middle, keep
// the most recent historyRecentKeep messages, and splice in a system-note
// summary of what was dropped so the model doesn't lose track of section
// names or reported outcomes it already saw.
//
// The returned list always starts with the original head messages (an
// untouched prefix, never summarized away) and never exceeds
// len(head) + 1 summary + 1 optional bridge + historyRecentKeep messages.
func compactHistory(messages []agent.ConversationMessage, headLen int) []agent.ConversationMessage {
	if len(messages) <= historyCompactionThreshold {
		return messages
	}
	if headLen > len(messages) {
		headLen = len(messages)
	}

	recentStart := len(messages) - historyRecentKeep
	if recentStart < headLen {
		recentStart = headLen
	}
	dropped := messages[headLen:recentStart]
	recent := messages[recentStart:]

	compacted := make([]agent.ConversationMessage, 0, headLen+2+len(recent))
	compacted = append(compacted, messages[:headLen]...)
	compacted = append(compacted, agent.ConversationMessage{
		Role:    agent.RoleUser,
		Content: summarizeDroppedHistory(dropped),
	})

	// The inserted summary is a user-role message. If the next surviving
	// message is also user-role, the provider's strict alternation
	// requirement would see two user turns back to back — bridge with a
	// short assistant turn.
	if len(recent) > 0 && recent[0].Role == agent.RoleUser {
		compacted = append(compacted, agent.ConversationMessage{
			Role:    agent.RoleAssistant,
			Content: "Understood — continuing from the summarized context above.",
		})
	}

	return append(compacted, recent...)
}

// summarizeDroppedHistory builds the system-note injected in place of the
// messages compactHistory drops. It calls out any resume section names and
// outcome-shaped phrases (percentages, impact verbs) it finds so the model
// doesn't lose that signal just because the raw turns scrolled out of view.
func summarizeDroppedHistory(dropped []agent.ConversationMessage) string {
	sections := map[string]bool{}
	var outcomes []string

	for _, msg := range dropped {
		lower := strings.ToLower(msg.Content)
		for _, name := range resumeSectionNames {
			if strings.Contains(lower, name) {
				sections[name] = true
			}
		}
		outcomes = append(outcomes, extractOutcomePhrases(msg.Content)...)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[Context note: %d earlier conversation turns were summarized to stay within the history limit.]", len(dropped)))

	if len(sections) > 0 {
		names := make([]string, 0, len(sections))
		for name := range sections {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString(" Sections discussed: " + strings.Join(names, ", ") + ".")
	}

	if len(outcomes) > 0 {
		const maxOutcomes = 5
		if len(outcomes) > maxOutcomes {
			outcomes = outcomes[:maxOutcomes]
		}
		b.WriteString(" Outcomes already captured: " + strings.Join(outcomes, "; ") + ".")
	}

	return b.String()
}

// extractOutcomePhrases pulls short snippets around a percentage figure or
// an impact verb out of content, so the compaction summary preserves the
// concrete numbers and achievements rather than just naming the section.
func extractOutcomePhrases(content string) []string {
	var phrases []string
	for _, sentence := range splitSentences(content) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if percentPattern.MatchString(trimmed) || containsAny(lower, outcomeVerbs) {
			phrases = append(phrases, truncate(trimmed, 160))
		}
	}
	return phrases
}

func splitSentences(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '\n'
	})
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
