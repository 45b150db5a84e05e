package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPaused is carried by the partial result of a run that stopped at a
// pause request. The execution's snapshot is in the state store.
var ErrPaused = errors.New("workflow execution paused")

// ErrExecutionNotFound is returned when an execution id matches neither an
// active run nor a paused snapshot.
var ErrExecutionNotFound = errors.New("execution not found")

// WorkflowNotFoundError reports a sub-workflow reference that resolves to no
// stored workflow. It is structural: it is never offered to recovery.
type WorkflowNotFoundError struct {
	ID string
}

func (e *WorkflowNotFoundError) Error() string {
	return fmt.Sprintf("workflow %q not found", e.ID)
}

// CyclicWorkflowError reports a sub-workflow reference cycle, detected from
// the chain of workflow ids currently being expanded. Structural, never
// retried.
type CyclicWorkflowError struct {
	Chain []string
}

func (e *CyclicWorkflowError) Error() string {
	return fmt.Sprintf("cyclic workflow reference: %s", strings.Join(e.Chain, " -> "))
}

// stepError wraps an unrecovered leaf failure together with what the
// recovery engine did about it.
type stepError struct {
	err               error
	recoveryAttempted bool
	attempts          int
}

func (e *stepError) Error() string { return e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }
