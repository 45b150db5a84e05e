package types

import (
	"time"

	"github.com/google/uuid"
)

// StepResult records the outcome of one executed leaf step.
// Results are immutable once produced; Index is the step's position in the
// flattened, execution-order result list, not its position in the tree.
type StepResult struct {
	ID         string        `json:"id" yaml:"id"`
	Index      int           `json:"index" yaml:"index"`
	Success    bool          `json:"success" yaml:"success"`
	Stdout     string        `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	ExitCode   int           `json:"exit_code" yaml:"exit_code"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	ExecutedAt time.Time     `json:"executed_at" yaml:"executed_at"`
}

// NewStepResult creates a result with a fresh unique ID. Index is assigned
// by the orchestrator when the result is merged into the execution stream.
func NewStepResult(success bool, stdout, stderr string, exitCode int, duration time.Duration) StepResult {
	return StepResult{
		ID:         uuid.NewString(),
		Success:    success,
		Stdout:     stdout,
		Stderr:     stderr,
		ExitCode:   exitCode,
		Duration:   duration,
		ExecutedAt: time.Now(),
	}
}

// ExecutionStatus is the overall outcome of a workflow run.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success" // Every top-level step completed
	ExecutionPartial ExecutionStatus = "partial" // Some steps completed before an unrecovered failure or pause
	ExecutionFailure ExecutionStatus = "failure" // Nothing completed
)

// FailureContext captures what failed and what recovery did about it, for
// downstream error reporting.
type FailureContext struct {
	StepIndex         int    `json:"step_index"`
	Message           string `json:"message"`
	RecoveryAttempted bool   `json:"recovery_attempted"`
	RecoveryAttempts  int    `json:"recovery_attempts"`
}

// ExecutionResult is the tagged outcome of ExecuteWorkflow. Callers always
// receive one of success/partial/failure; completed step results are never
// dropped on failure.
type ExecutionResult struct {
	Status  ExecutionStatus `json:"status"`
	Results []StepResult    `json:"results"`
	Err     error           `json:"-"`
	Failure *FailureContext `json:"failure,omitempty"`
}

// Success builds a fully-successful result.
func Success(results []StepResult) ExecutionResult {
	return ExecutionResult{Status: ExecutionSuccess, Results: results}
}

// Partial builds a result carrying everything collected before the failure.
func Partial(results []StepResult, err error, fc *FailureContext) ExecutionResult {
	return ExecutionResult{Status: ExecutionPartial, Results: results, Err: err, Failure: fc}
}

// Failure builds a result for a run where nothing completed.
func Failure(err error, fc *FailureContext) ExecutionResult {
	return ExecutionResult{Status: ExecutionFailure, Err: err, Failure: fc}
}
