package store

import "fmt"

// FormatError reports uploaded bytes that cannot be parsed as a supported
// tabular or database format.
type FormatError struct {
	Filename string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot load %s: %s", e.Filename, e.Reason)
}

// ExecutionError reports a statement the engine rejected, carrying the
// engine's own message. Executions that fail with it leave the data file
// unchanged.
type ExecutionError struct {
	Query   string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("statement failed: %s", e.Message)
}
