// Package orchestrator executes workflows: it walks the step tree, dispatches
// leaf steps to the executor, applies recovery on failures, and handles
// pause/resume snapshots.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskpilot/taskpilot/internal/condition"
	"github.com/taskpilot/taskpilot/internal/logging"
	"github.com/taskpilot/taskpilot/internal/recovery"
	"github.com/taskpilot/taskpilot/internal/types"
)

// CommandRunner executes a single command step. *executor.Executor satisfies
// it in production.
type CommandRunner interface {
	Execute(ctx context.Context, cmd *types.Command) (types.StepResult, error)
}

// RecoveryEngine decides what to do about a failed command. *recovery.Engine
// satisfies it in production.
type RecoveryEngine interface {
	Attempt(ctx context.Context, cmd *types.Command, execErr error) recovery.Outcome
}

// Orchestrator coordinates workflow runs. Safe for concurrent use; each run
// owns its execution state and shares only the stores.
type Orchestrator struct {
	runner    CommandRunner
	recovery  RecoveryEngine
	workflows WorkflowStore
	states    StateStore
	evaluator *condition.Evaluator
	logger    *slog.Logger

	mu   sync.Mutex
	runs map[string]*activeRun
}

// activeRun tracks one in-flight execution so PauseWorkflow can signal it.
type activeRun struct {
	pauseRequested bool
	wasPaused      bool
	done           chan struct{}
}

// New creates an orchestrator.
func New(runner CommandRunner, rec RecoveryEngine, workflows WorkflowStore, states StateStore, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runner:    runner,
		recovery:  rec,
		workflows: workflows,
		states:    states,
		evaluator: condition.New(),
		logger:    logger,
		runs:      make(map[string]*activeRun),
	}
}

// StoreWorkflow validates and saves a workflow definition.
func (o *Orchestrator) StoreWorkflow(wf *types.Workflow) error {
	if err := wf.Validate(); err != nil {
		return fmt.Errorf("invalid workflow %q: %w", wf.ID, err)
	}
	return o.workflows.Save(wf)
}

// GetWorkflow retrieves a stored workflow definition.
func (o *Orchestrator) GetWorkflow(id string) (*types.Workflow, error) {
	return o.workflows.Get(id)
}

// ListWorkflows returns all stored workflow definitions.
func (o *Orchestrator) ListWorkflows() ([]*types.Workflow, error) {
	return o.workflows.List()
}

// NewExecution resolves a workflow and prepares a run of it with the given
// context variables. The returned execution's ID is the handle PauseWorkflow
// and ResumeWorkflow take.
func (o *Orchestrator) NewExecution(workflowID string, vars map[string]string) (*types.WorkflowExecution, error) {
	wf, err := o.workflows.Get(workflowID)
	if err != nil {
		return nil, err
	}
	exec := types.NewExecution(*wf)
	for k, v := range vars {
		exec.Context[k] = v
	}
	return exec, nil
}

// ExecuteWorkflow runs a stored workflow to completion. The outcome is
// always a tagged result; completed step results survive failures.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowID string, vars map[string]string) types.ExecutionResult {
	exec, err := o.NewExecution(workflowID, vars)
	if err != nil {
		return types.Failure(err, &types.FailureContext{Message: err.Error()})
	}
	return o.Run(ctx, exec)
}

// Run executes a prepared execution from its current step index.
func (o *Orchestrator) Run(ctx context.Context, exec *types.WorkflowExecution) types.ExecutionResult {
	run := &activeRun{done: make(chan struct{})}
	o.mu.Lock()
	o.runs[exec.ID] = run
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.runs, exec.ID)
		o.mu.Unlock()
		close(run.done)
	}()

	logger := logging.WithWorkflow(logging.WithExecution(o.logger, exec.ID), exec.Workflow.ID)
	logger.Info("workflow run starting",
		"step_index", exec.CurrentStepIndex, "total_steps", len(exec.Workflow.Steps))

	chain := []string{exec.Workflow.ID}
	for exec.CurrentStepIndex < len(exec.Workflow.Steps) {
		// Pause takes effect only at top-level step boundaries; the step
		// in flight always finishes first.
		o.mu.Lock()
		pausing := run.pauseRequested
		o.mu.Unlock()
		if pausing {
			state := &types.WorkflowState{Execution: *exec, PausedAt: time.Now()}
			if err := o.states.Put(state); err != nil {
				logger.Error("persisting pause snapshot", "error", err)
				return o.failed(exec, fmt.Errorf("pausing execution: %w", err))
			}
			o.mu.Lock()
			run.wasPaused = true
			o.mu.Unlock()
			logger.Info("workflow run paused", "step_index", exec.CurrentStepIndex)
			return types.Partial(exec.Results, ErrPaused, nil)
		}

		step := &exec.Workflow.Steps[exec.CurrentStepIndex]
		results, err := o.evalStep(ctx, exec, step, chain)
		exec.Append(results...)
		if err != nil {
			logger.Warn("workflow run failed",
				"step_index", exec.CurrentStepIndex, "error", err)
			return o.failed(exec, err)
		}
		exec.CurrentStepIndex++
	}

	logger.Info("workflow run complete", "results", len(exec.Results))
	return types.Success(exec.Results)
}

// PauseWorkflow requests a pause and blocks until the run has either
// persisted its snapshot or finished on its own. In the latter case an error
// is returned: there is nothing to resume.
func (o *Orchestrator) PauseWorkflow(executionID string) error {
	o.mu.Lock()
	run, ok := o.runs[executionID]
	if ok {
		run.pauseRequested = true
	}
	o.mu.Unlock()
	if !ok {
		return ErrExecutionNotFound
	}

	<-run.done

	o.mu.Lock()
	paused := run.wasPaused
	o.mu.Unlock()
	if !paused {
		return fmt.Errorf("execution %q finished before it could pause", executionID)
	}
	return nil
}

// ResumeWorkflow pops a paused snapshot and continues the run from its
// saved step index. The snapshot is consumed even if the resumed run fails;
// a failed resume reports through the execution result, not a stale snapshot.
func (o *Orchestrator) ResumeWorkflow(ctx context.Context, executionID string) (types.ExecutionResult, error) {
	o.mu.Lock()
	state, err := o.states.Get(executionID)
	if err == nil {
		err = o.states.Delete(executionID)
	}
	o.mu.Unlock()
	if err != nil {
		return types.ExecutionResult{}, err
	}

	exec := state.Execution
	o.logger.Info("resuming workflow",
		"execution_id", exec.ID, "workflow_id", exec.Workflow.ID,
		"step_index", exec.CurrentStepIndex)
	return o.Run(ctx, &exec), nil
}

// GetPausedWorkflows returns the full paused snapshots, including every
// result and context binding collected before the pause.
func (o *Orchestrator) GetPausedWorkflows() ([]*types.WorkflowState, error) {
	return o.states.List()
}

// PausedWorkflows lists summaries of all paused snapshots.
func (o *Orchestrator) PausedWorkflows() ([]types.StateSummary, error) {
	states, err := o.states.List()
	if err != nil {
		return nil, err
	}
	summaries := make([]types.StateSummary, 0, len(states))
	for _, state := range states {
		summaries = append(summaries, state.Summary())
	}
	return summaries, nil
}

// DiscardPaused drops a paused snapshot without resuming it.
func (o *Orchestrator) DiscardPaused(executionID string) error {
	return o.states.Delete(executionID)
}

// failed builds the terminal result for an unrecovered error: failure when
// nothing completed, partial otherwise.
func (o *Orchestrator) failed(exec *types.WorkflowExecution, err error) types.ExecutionResult {
	fc := &types.FailureContext{
		StepIndex: exec.CurrentStepIndex,
		Message:   err.Error(),
	}
	var se *stepError
	if errors.As(err, &se) {
		fc.RecoveryAttempted = se.recoveryAttempted
		fc.RecoveryAttempts = se.attempts
	}
	if len(exec.Results) == 0 {
		return types.Failure(err, fc)
	}
	return types.Partial(exec.Results, err, fc)
}
