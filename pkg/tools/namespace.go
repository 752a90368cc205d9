package tools

// namespaceToolNames maps an agent's tool namespace tag (one per pipeline
// role) to the subset of the global built-in tool set that role may call.
// Tool bodies are shared and flat (pkg/tools/builtin.go); the namespace
// only curates which ones a given stage's model sees in its tool list.
var namespaceToolNames = map[string][]string{
	"intake":            nil,
	"positioning":       {"present_to_user"},
	"research":          {"interview_user", "record_evidence"},
	"gap_analysis":      {"record_evidence", "classify_requirement"},
	"architect":         nil,
	"architect_review":  {"present_to_user"},
	"section_writing":   {"record_evidence"},
	"section_review":    {"present_to_user"},
	"quality_review":    {"request_revision"},
}

// ToolNamesForNamespaces resolves an agent's configured namespace tags into
// a deduplicated, ordered list of tool names to bind for that execution. An
// unrecognized namespace contributes nothing rather than erroring, so a new
// namespace can be added to config before this map is updated without
// breaking agent startup.
func ToolNamesForNamespaces(namespaces []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ns := range namespaces {
		for _, name := range namespaceToolNames[ns] {
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
