// Package executor runs single commands inside sandbox profiles with
// timeout enforcement and cancellation support.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/taskpilot/taskpilot/internal/logging"
	"github.com/taskpilot/taskpilot/internal/permission"
	"github.com/taskpilot/taskpilot/internal/sandbox"
	"github.com/taskpilot/taskpilot/internal/types"
)

// killGracePeriod is how long a timed-out process gets between SIGTERM and
// SIGKILL.
const killGracePeriod = 3 * time.Second

// Options tune the executor.
type Options struct {
	// Shell is used to execute command scripts. Defaults to "/bin/sh".
	Shell string

	// DefaultTimeout applies when a command specifies no timeout.
	DefaultTimeout time.Duration
}

// Executor runs one leaf command at a time inside a sandbox profile.
// It is safe for concurrent use; parallel workflow branches share one
// Executor and each command gets its own sandbox.
type Executor struct {
	shell          string
	defaultTimeout time.Duration
	sandboxes      *sandbox.Manager
	permissions    *permission.Manager
	logger         *slog.Logger
}

// New creates an Executor.
func New(sandboxes *sandbox.Manager, permissions *permission.Manager, logger *slog.Logger, opts Options) *Executor {
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		shell:          shell,
		defaultTimeout: timeout,
		sandboxes:      sandboxes,
		permissions:    permissions,
		logger:         logger,
	}
}

// Execute runs the command and captures its outcome. The returned StepResult
// is populated on every path, including failures, so ExecutedAt and Duration
// are always meaningful. Errors are one of *permission.DeniedError,
// *sandbox.ViolationError, *TimeoutError, or *ProcessError.
func (e *Executor) Execute(ctx context.Context, cmd *types.Command) (types.StepResult, error) {
	start := time.Now()

	// Permission gate before anything is spawned.
	if err := e.permissions.Authorize(ctx, cmd); err != nil {
		e.logger.Warn("command blocked by permission gate", "error", err)
		return failedResult(start, "", err.Error(), -1), err
	}

	// Classification happens inside CreateSandbox; a dangerous command
	// never reaches the process spawn.
	sb, err := e.sandboxes.CreateSandbox(cmd)
	if err != nil {
		e.logger.Warn("command blocked by sandbox", "error", err)
		return failedResult(start, "", err.Error(), -1), err
	}
	logger := logging.WithSandbox(e.logger, sb.ID)
	defer func() {
		if derr := e.sandboxes.DestroySandbox(sb.ID); derr != nil {
			logger.Warn("destroying sandbox", "error", derr)
		}
	}()

	timeout := e.defaultTimeout
	if cmd.TimeoutSeconds > 0 {
		timeout = time.Duration(cmd.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, runErr := e.runProcess(runCtx, cmd.Script, sb)
	elapsed := time.Since(start)

	logger.Debug("command finished",
		"exit_code", exitCode,
		"duration", elapsed,
	)

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		result := failedResult(start, stdout, fmt.Sprintf("timed out after %s", timeout), exitCode)
		return result, &TimeoutError{Timeout: timeout}
	case runErr != nil:
		return failedResult(start, stdout, stderr, exitCode), fmt.Errorf("running command: %w", runErr)
	case exitCode != 0:
		result := failedResult(start, stdout, stderr, exitCode)
		return result, &ProcessError{ExitCode: exitCode, Stderr: stderr}
	}

	result := types.NewStepResult(true, stdout, stderr, 0, elapsed)
	result.ExecutedAt = start
	return result, nil
}

// runProcess spawns the script constrained to the sandbox profile and waits
// for exit or cancellation. On cancellation the whole process group is
// terminated, SIGTERM first and SIGKILL after a grace period.
func (e *Executor) runProcess(ctx context.Context, script string, sb *sandbox.Sandbox) (stdout, stderr string, exitCode int, err error) {
	// Cancellation is handled manually so the process group gets a graceful
	// SIGTERM before SIGKILL.
	cmd := exec.Command(e.shell, "-c", script)

	// The sandbox home directory is the working directory.
	if len(sb.Profile.AllowedPaths) > 0 {
		cmd.Dir = sb.Profile.AllowedPaths[0]
	}

	cmd.Env = make([]string, 0, len(sb.Profile.Environment))
	for k, v := range sb.Profile.Environment {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	// Own process group so the entire tree can be killed.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return "", "", -1, fmt.Errorf("starting command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
			select {
			case <-done:
			case <-time.After(killGracePeriod):
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
				<-done
			}
		}
		exitCode = -1

	case waitErr := <-done:
		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else {
				return trimmed(&outBuf), trimmed(&errBuf), -1, waitErr
			}
		}
	}

	return trimmed(&outBuf), trimmed(&errBuf), exitCode, nil
}

func trimmed(buf *bytes.Buffer) string {
	return strings.TrimSuffix(buf.String(), "\n")
}

// failedResult builds a failure StepResult with timing populated.
func failedResult(start time.Time, stdout, stderr string, exitCode int) types.StepResult {
	if exitCode == 0 {
		exitCode = -1
	}
	result := types.NewStepResult(false, stdout, stderr, exitCode, time.Since(start))
	result.ExecutedAt = start
	return result
}
