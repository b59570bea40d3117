package wtsv

import "fmt"

// FormatError reports malformed TSV structure. It is fatal for the file:
// no model is returned and no downstream stage runs.
type FormatError struct {
	Line   int    // 1-based input line
	Reason string // what was wrong with it
	Err    error  // underlying cause, when one exists
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// formatErrf builds a FormatError for the given line.
func formatErrf(line int, format string, args ...interface{}) *FormatError {
	return &FormatError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
