package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot/internal/executor"
	"github.com/taskpilot/taskpilot/internal/logging"
	"github.com/taskpilot/taskpilot/internal/permission"
	"github.com/taskpilot/taskpilot/internal/sandbox"
	"github.com/taskpilot/taskpilot/internal/types"
)

// scriptedRunner fails a script a fixed number of times before succeeding.
type scriptedRunner struct {
	failures  map[string]int // script -> remaining failures
	calls     []string
	failError error
}

func (r *scriptedRunner) Execute(_ context.Context, cmd *types.Command) (types.StepResult, error) {
	r.calls = append(r.calls, cmd.Script)
	if r.failures[cmd.Script] > 0 {
		r.failures[cmd.Script]--
		err := r.failError
		if err == nil {
			err = &executor.ProcessError{ExitCode: 1}
		}
		return types.NewStepResult(false, "", "fail", 1, 0), err
	}
	return types.NewStepResult(true, "ok: "+cmd.Script, "", 0, 0), nil
}

func TestAttemptRetryRecovers(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]int{"flaky": 1}}
	e := New(runner, logging.NewForTest(), 2)

	outcome := e.Attempt(context.Background(), &types.Command{Script: "flaky"},
		&executor.ProcessError{ExitCode: 1})

	assert.Equal(t, DecisionRecovered, outcome.Decision)
	require.NotNil(t, outcome.Result)
	assert.True(t, outcome.Result.Success)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Error(t, outcome.Err, "original error must be retained")
}

func TestAttemptRetriesAreBounded(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]int{"hopeless": 100}}
	e := New(runner, logging.NewForTest(), 3)

	outcome := e.Attempt(context.Background(), &types.Command{Script: "hopeless"},
		&executor.ProcessError{ExitCode: 1})

	assert.Equal(t, DecisionFail, outcome.Decision)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Len(t, runner.calls, 3)
}

func TestAttemptFallbackSubstitute(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]int{"primary": 100}}
	e := New(runner, logging.NewForTest(), 1)

	outcome := e.Attempt(context.Background(),
		&types.Command{Script: "primary", Fallback: "backup"},
		&executor.ProcessError{ExitCode: 1})

	assert.Equal(t, DecisionRecovered, outcome.Decision)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, "ok: backup", outcome.Result.Stdout)
	assert.Equal(t, []string{"primary", "backup"}, runner.calls)
}

func TestAttemptSkipWhenContinueTolerated(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]int{"broken": 100}}
	e := New(runner, logging.NewForTest(), 1)

	outcome := e.Attempt(context.Background(),
		&types.Command{Script: "broken", OnError: types.OnErrorContinue},
		&executor.ProcessError{ExitCode: 1})

	assert.Equal(t, DecisionSkip, outcome.Decision)
	assert.Nil(t, outcome.Result)
	assert.Error(t, outcome.Err)
}

func TestAttemptPermissionDeniedNotRetried(t *testing.T) {
	runner := &scriptedRunner{}
	e := New(runner, logging.NewForTest(), 5)

	outcome := e.Attempt(context.Background(), &types.Command{Script: "rm x"},
		&permission.DeniedError{Kind: types.PermissionFilesystem})

	assert.Equal(t, DecisionFail, outcome.Decision)
	assert.Zero(t, outcome.Attempts)
	assert.Empty(t, runner.calls, "permission denials must not be retried")
}

func TestAttemptSandboxViolationNotRetried(t *testing.T) {
	runner := &scriptedRunner{}
	e := New(runner, logging.NewForTest(), 5)

	outcome := e.Attempt(context.Background(), &types.Command{Script: "sudo x"},
		&sandbox.ViolationError{Category: sandbox.CategoryPrivilegeEscalation})

	assert.Equal(t, DecisionFail, outcome.Decision)
	assert.Zero(t, outcome.Attempts)
	assert.Empty(t, runner.calls)
}

func TestAttemptTimeoutIsTransient(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]int{"slow": 1}}
	e := New(runner, logging.NewForTest(), 2)

	outcome := e.Attempt(context.Background(), &types.Command{Script: "slow"},
		&executor.TimeoutError{})

	assert.Equal(t, DecisionRecovered, outcome.Decision)
}

func TestAttemptHonorsCancelledContext(t *testing.T) {
	runner := &scriptedRunner{failures: map[string]int{"x": 100}}
	e := New(runner, logging.NewForTest(), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := e.Attempt(ctx, &types.Command{Script: "x", Fallback: "y"},
		&executor.ProcessError{ExitCode: 1})

	assert.Equal(t, DecisionFail, outcome.Decision)
	assert.Zero(t, outcome.Attempts)
}
