package types

import (
	"time"

	"github.com/google/uuid"
)

// StaleAfter is how long a paused execution may sit before its summary
// reports it stale.
const StaleAfter = 24 * time.Hour

// WorkflowExecution is the mutable state of one workflow run.
type WorkflowExecution struct {
	ID       string   `json:"id" yaml:"id"`
	Workflow Workflow `json:"workflow" yaml:"workflow"`

	// CurrentStepIndex is the position in the top-level step sequence,
	// the granularity at which a run can pause and resume.
	CurrentStepIndex int `json:"current_step_index" yaml:"current_step_index"`

	// Results is the flattened, execution-order result stream.
	Results []StepResult `json:"results" yaml:"results"`

	// Context holds the execution's variable bindings, visible to prompt
	// rendering and condition evaluation.
	Context map[string]string `json:"context,omitempty" yaml:"context,omitempty"`
}

// NewExecution starts tracking a run of the given workflow.
func NewExecution(wf Workflow) *WorkflowExecution {
	return &WorkflowExecution{
		ID:       uuid.NewString(),
		Workflow: wf,
		Context:  make(map[string]string),
	}
}

// Append merges results into the stream, assigning flattened indices in
// arrival order.
func (e *WorkflowExecution) Append(results ...StepResult) {
	for _, r := range results {
		r.Index = len(e.Results)
		e.Results = append(e.Results, r)
	}
}

// WorkflowState is the pause snapshot of an execution. It round-trips
// through encode/decode with no loss of step index, results, or context.
type WorkflowState struct {
	Execution WorkflowExecution `json:"execution" yaml:"execution"`
	PausedAt  time.Time         `json:"paused_at" yaml:"paused_at"`
}

// StateSummary is derived from a snapshot for display and housekeeping.
type StateSummary struct {
	ExecutionID    string    `json:"execution_id"`
	WorkflowName   string    `json:"workflow_name"`
	TotalSteps     int       `json:"total_steps"`
	CompletedSteps int       `json:"completed_steps"`
	RemainingSteps int       `json:"remaining_steps"`
	PausedAt       time.Time `json:"paused_at"`
	IsStale        bool      `json:"is_stale"`
}

// Summary derives the snapshot summary. CompletedSteps+RemainingSteps always
// equals TotalSteps.
func (s *WorkflowState) Summary() StateSummary {
	total := len(s.Execution.Workflow.Steps)
	completed := s.Execution.CurrentStepIndex
	if completed > total {
		completed = total
	}
	return StateSummary{
		ExecutionID:    s.Execution.ID,
		WorkflowName:   s.Execution.Workflow.Name,
		TotalSteps:     total,
		CompletedSteps: completed,
		RemainingSteps: total - completed,
		PausedAt:       s.PausedAt,
		IsStale:        time.Since(s.PausedAt) > StaleAfter,
	}
}
