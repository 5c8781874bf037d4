package agent

import (
	"errors"
	"fmt"
)

// ErrWriteRejected marks SQL containing a write/DDL verb. Fatal and never
// retried.
var ErrWriteRejected = errors.New("write operations are not allowed, SELECT only")

// SQLExecutionError wraps an analytic-engine failure for one attempt.
type SQLExecutionError struct {
	SQL     string
	Attempt int
	Err     error
}

func (e *SQLExecutionError) Error() string {
	return fmt.Sprintf("sql execution failed (attempt %d): %v", e.Attempt, e.Err)
}

func (e *SQLExecutionError) Unwrap() error { return e.Err }

// MissingIdentifier is a column or table name the engine could not
// resolve, parsed out of driver error text.
type MissingIdentifier struct {
	Type string // "column" or "table"
	Name string
}

// ExhaustedRetriesError is terminal: the refine loop ran out of attempts
// without producing a result or a clarification.
type ExhaustedRetriesError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("sql execution failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.LastErr }

// ClarificationNeeded aborts the refine loop in favor of asking the user
// to disambiguate a missing identifier.
type ClarificationNeeded struct {
	Missing    MissingIdentifier
	Candidates []string
}

func (e *ClarificationNeeded) Error() string {
	return fmt.Sprintf("clarification needed for %s %q", e.Missing.Type, e.Missing.Name)
}
