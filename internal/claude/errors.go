package claude

import "fmt"

// ValidationError marks malformed or policy-violating input. It is surfaced
// to the caller as-is, never wrapped and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ToolExecutionError wraps any failure during subprocess invocation or an
// unexpected internal failure, tagged with the operation it belongs to.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// Execution tags err with the operation name.
func Execution(tool string, err error) *ToolExecutionError {
	return &ToolExecutionError{Tool: tool, Err: err}
}
