package prompt

import "strings"

// FormatIntakeSection wraps the original submission (resume text + job
// posting text) in a delimited block so the model can't confuse candidate-
// authored text with system instructions that precede or follow it.
func FormatIntakeSection(intakeData string) string {
	var sb strings.Builder
	sb.WriteString("## Intake Data\n\n")
	if intakeData == "" {
		sb.WriteString("No intake data provided.\n")
		return sb.String()
	}
	sb.WriteString("<!-- INTAKE_DATA_START -->\n")
	sb.WriteString(intakeData)
	sb.WriteString("\n<!-- INTAKE_DATA_END -->\n")
	return sb.String()
}

// FormatPriorStageSection wraps pre-formatted output from the previous
// pipeline stage into a section. prevStageContext is the output of
// pkg/agent/context.Formatter — already formatted, never raw artifacts.
func FormatPriorStageSection(prevStageContext string) string {
	if prevStageContext == "" {
		return "## Previous Stage Output\nNo previous stage output is available. This is the first working stage of the pipeline.\n"
	}
	var sb strings.Builder
	sb.WriteString("## Previous Stage Output\n")
	sb.WriteString(prevStageContext)
	sb.WriteString("\n")
	return sb.String()
}
