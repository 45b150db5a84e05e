package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskpilot/taskpilot/internal/condition"
	"github.com/taskpilot/taskpilot/internal/recovery"
	"github.com/taskpilot/taskpilot/internal/types"
)

// evalStep dispatches one step of the tree and returns the results its
// subtree produced, in execution order. chain is the stack of workflow ids
// currently being expanded, used for cycle detection.
func (o *Orchestrator) evalStep(ctx context.Context, exec *types.WorkflowExecution, step *types.WorkflowStep, chain []string) ([]types.StepResult, error) {
	switch step.Kind {
	case types.StepCommand:
		return o.evalCommand(ctx, step.Command)
	case types.StepPrompt:
		return o.evalPrompt(exec, step.Prompt)
	case types.StepParallel:
		return o.evalParallel(ctx, exec, step.Parallel, chain)
	case types.StepConditional:
		return o.evalConditional(ctx, exec, step.Conditional, chain)
	case types.StepSubworkflow:
		return o.evalSubworkflow(ctx, exec, step.Subworkflow, chain)
	default:
		return nil, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// evalCommand runs a command and, on failure, lets the recovery engine
// decide between a recovered result, a tolerated skip, or propagation.
func (o *Orchestrator) evalCommand(ctx context.Context, cmd *types.Command) ([]types.StepResult, error) {
	result, err := o.runner.Execute(ctx, cmd)
	if err == nil {
		return []types.StepResult{result}, nil
	}

	outcome := o.recovery.Attempt(ctx, cmd, err)
	switch outcome.Decision {
	case recovery.DecisionRecovered:
		return []types.StepResult{*outcome.Result}, nil
	case recovery.DecisionSkip:
		o.logger.Warn("command failure skipped", "script", cmd.Script, "error", outcome.Err)
		return nil, nil
	default:
		return nil, &stepError{
			err:               outcome.Err,
			recoveryAttempted: outcome.Attempts > 0,
			attempts:          outcome.Attempts,
		}
	}
}

// evalPrompt renders the message against the execution context and emits it
// as the step's stdout. Prompts never fail.
func (o *Orchestrator) evalPrompt(exec *types.WorkflowExecution, p *types.Prompt) ([]types.StepResult, error) {
	rendered, _ := condition.Substitute(p.Message, exec.Context)
	return []types.StepResult{types.NewStepResult(true, rendered, "", 0, 0)}, nil
}

// evalParallel fans children out concurrently and merges their results in
// child order regardless of completion order. A failing branch never cancels
// its siblings; the first failure (in child order) surfaces after every
// branch has finished, with the successful branches' results kept.
func (o *Orchestrator) evalParallel(ctx context.Context, exec *types.WorkflowExecution, children []types.WorkflowStep, chain []string) ([]types.StepResult, error) {
	type branch struct {
		results []types.StepResult
		err     error
	}
	branches := make([]branch, len(children))

	var wg sync.WaitGroup
	for i := range children {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := o.evalStep(ctx, exec, &children[i], chain)
			branches[i] = branch{results: results, err: err}
		}(i)
	}
	wg.Wait()

	var merged []types.StepResult
	var firstErr error
	for i := range branches {
		merged = append(merged, branches[i].results...)
		if branches[i].err != nil && firstErr == nil {
			firstErr = branches[i].err
		}
	}
	return merged, firstErr
}

// evalConditional evaluates the condition exactly once and runs the matching
// branch. A missing branch contributes nothing.
func (o *Orchestrator) evalConditional(ctx context.Context, exec *types.WorkflowExecution, c *types.Conditional, chain []string) ([]types.StepResult, error) {
	branch := c.False
	if o.evaluator.Evaluate(c.Condition, exec.Context) {
		branch = c.True
	}
	if branch == nil {
		return nil, nil
	}
	return o.evalStep(ctx, exec, branch, chain)
}

// evalSubworkflow resolves the referenced workflow and inlines its steps
// into the current run. Results are indistinguishable from steps defined
// directly in the parent.
func (o *Orchestrator) evalSubworkflow(ctx context.Context, exec *types.WorkflowExecution, workflowID string, chain []string) ([]types.StepResult, error) {
	for _, id := range chain {
		if id == workflowID {
			cycle := make([]string, 0, len(chain)+1)
			cycle = append(append(cycle, chain...), workflowID)
			return nil, &CyclicWorkflowError{Chain: cycle}
		}
	}

	wf, err := o.workflows.Get(workflowID)
	if err != nil {
		return nil, err
	}

	sub := make([]string, 0, len(chain)+1)
	sub = append(append(sub, chain...), workflowID)

	var out []types.StepResult
	for i := range wf.Steps {
		results, err := o.evalStep(ctx, exec, &wf.Steps[i], sub)
		out = append(out, results...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
