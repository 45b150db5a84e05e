// Package recovery attempts bounded recovery of failed command steps before
// the failure is allowed to propagate.
package recovery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taskpilot/taskpilot/internal/permission"
	"github.com/taskpilot/taskpilot/internal/sandbox"
	"github.com/taskpilot/taskpilot/internal/types"
)

// Decision is the engine's verdict on a failed step.
type Decision string

const (
	DecisionRecovered Decision = "recovered" // A retry or fallback produced a successful result
	DecisionSkip      Decision = "skip"      // Failure tolerated, continue without a result
	DecisionFail      Decision = "fail"      // Failure propagates
)

// Outcome records what recovery did. The original error and the attempt
// count are always retained so callers can report "recovery attempted" even
// when it ultimately failed.
type Outcome struct {
	Decision Decision
	Result   *types.StepResult // populated when Decision is recovered
	Attempts int               // recovery executions actually made
	Err      error             // the original failure
}

// Runner re-executes commands during recovery. *executor.Executor satisfies
// it.
type Runner interface {
	Execute(ctx context.Context, cmd *types.Command) (types.StepResult, error)
}

// Engine applies the recovery policy: retry transient failures a bounded
// number of times, then substitute the fallback script if one is defined,
// then skip if the command tolerates failure, otherwise fail.
type Engine struct {
	runner     Runner
	maxRetries int
	logger     *slog.Logger
}

// New creates an Engine. maxRetries bounds re-executions of the primary
// script per failed step.
func New(runner Runner, logger *slog.Logger, maxRetries int) *Engine {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Engine{runner: runner, maxRetries: maxRetries, logger: logger}
}

// Attempt runs the recovery policy for a failed command. It is always
// invoked before a step failure propagates; permission and sandbox
// violations are never retried since re-running cannot change the outcome.
func (e *Engine) Attempt(ctx context.Context, cmd *types.Command, execErr error) Outcome {
	outcome := Outcome{Decision: DecisionFail, Err: execErr}

	if !isTransient(execErr) {
		e.logger.Info("failure is not recoverable", "error", execErr)
		if cmd.OnError == types.OnErrorContinue {
			outcome.Decision = DecisionSkip
		}
		return outcome
	}

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return outcome
		}

		e.logger.Info("retrying failed command", "attempt", attempt, "max", e.maxRetries)
		result, err := e.runner.Execute(ctx, cmd)
		outcome.Attempts++
		if err == nil {
			e.logger.Info("command recovered by retry", "attempt", attempt)
			outcome.Decision = DecisionRecovered
			outcome.Result = &result
			return outcome
		}
		if !isTransient(err) {
			// A retry can surface a hard failure, e.g. a permission revoked
			// mid-run. Stop immediately.
			break
		}
	}

	if cmd.Fallback != "" && ctx.Err() == nil {
		e.logger.Info("running fallback command")
		substitute := *cmd
		substitute.Script = cmd.Fallback
		substitute.Fallback = ""

		result, err := e.runner.Execute(ctx, &substitute)
		outcome.Attempts++
		if err == nil {
			outcome.Decision = DecisionRecovered
			outcome.Result = &result
			return outcome
		}
	}

	if cmd.OnError == types.OnErrorContinue {
		outcome.Decision = DecisionSkip
	}
	return outcome
}

// isTransient reports whether a failure class is worth retrying. Process
// errors and timeouts are transient; permission and sandbox violations are
// deterministic.
func isTransient(err error) bool {
	var denied *permission.DeniedError
	var violation *sandbox.ViolationError
	if errors.As(err, &denied) || errors.As(err, &violation) {
		return false
	}
	return true
}
