package campaign

import (
	"errors"
	"fmt"
)

// ErrAssetNotFound is returned when a regeneration target is not in the plan.
var ErrAssetNotFound = errors.New("Asset not found") //nolint:staticcheck // surfaced verbatim to API callers

// SchemaError reports model output that cannot be parsed or unwrapped.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema error: %s: %v", e.Reason, e.Err)
	}
	return "schema error: " + e.Reason
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ValidationError reports the first manifest field that violates the schema.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error at %s: %s", e.Field, e.Message)
}

// ToolExecutionError describes a tool call that failed after all attempts.
// It is recorded on the call, never returned from the generation walk.
type ToolExecutionError struct {
	Tool    ToolKind
	CallID  string
	Message string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s (%s) failed: %s", e.Tool, e.CallID, e.Message)
}

// CallError converts the failure into the record stored on the call.
func (e *ToolExecutionError) CallError() *CallError {
	return &CallError{Code: ErrorCodeExecutionFailed, Message: e.Message}
}
