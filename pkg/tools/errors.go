package tools

import "fmt"

// ErrorKind classifies a tool failure so the Agent Loop can decide whether
// to feed the error back to the model (the normal case) or treat it as
// fatal to the execution.
type ErrorKind string

const (
	// ErrorKindValidation means the model supplied input that failed
	// schema or business validation. Always recoverable: the model gets
	// the message back and can retry with corrected arguments.
	ErrorKindValidation ErrorKind = "validation_error"
	// ErrorKindExecution means the tool body ran and failed (a lookup
	// came up empty, an external check failed). Recoverable.
	ErrorKindExecution ErrorKind = "execution_error"
	// ErrorKindUnknownTool means the model invented or misspelled a tool
	// name not present in its bound set.
	ErrorKindUnknownTool ErrorKind = "unknown_tool"
	// ErrorKindCancelled means the session was cancelled or the gate it
	// was waiting on was abandoned. Not fed back to the model; the Agent
	// Loop aborts the round instead.
	ErrorKindCancelled ErrorKind = "cancelled"
)

// ToolError is the structured form of a tool failure. The registry never
// returns a bare Go error from dispatch for a validation or execution
// failure — those are folded into a ToolResult with IsError set, per the
// convention that tool failures are conversation content, not Go errors.
type ToolError struct {
	Kind ErrorKind
	Msg  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Validation builds a validation ToolError.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Kind: ErrorKindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Execution builds an execution ToolError.
func Execution(format string, args ...any) *ToolError {
	return &ToolError{Kind: ErrorKindExecution, Msg: fmt.Sprintf(format, args...)}
}
