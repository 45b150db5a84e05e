package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/cli"
	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/executor"
	"github.com/taskpilot/taskpilot/internal/logging"
	"github.com/taskpilot/taskpilot/internal/orchestrator"
	"github.com/taskpilot/taskpilot/internal/permission"
	"github.com/taskpilot/taskpilot/internal/recovery"
	"github.com/taskpilot/taskpilot/internal/sandbox"
	"github.com/taskpilot/taskpilot/internal/types"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	verbose bool
	workDir string
)

var rootCmd = &cobra.Command{
	Use:   "taskpilot",
	Short: "TaskPilot - sandboxed personal workflow automation",
	Long: `TaskPilot runs personal automation workflows: trees of shell commands,
prompts, parallel fan-outs, conditionals, and nested workflows.

Every command executes inside a sandbox with path and resource limits,
dangerous scripts are rejected up front, and sensitive operations wait
for an explicit permission grant. Long runs can be paused and resumed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// When no subcommand is given, list stored workflows.
		if err := listWorkflows(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("taskpilot {{.Version}}\n")
}

// getWorkDir returns the effective working directory.
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}

// stack is the wired set of components a command needs to run workflows.
type stack struct {
	cfg  *config.Config
	orch *orchestrator.Orchestrator
	logs io.Closer
}

func (s *stack) Close() {
	if s.logs != nil {
		s.logs.Close()
	}
}

// buildStack loads config and wires stores, executor, recovery, and
// orchestrator for the working directory.
func buildStack(grantAll bool) (*stack, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}

	logger, closer, err := logging.NewFromConfig(cfg, dir)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	workflows, err := orchestrator.NewYAMLWorkflowStore(cfg.WorkflowDir(dir))
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("opening workflow store: %w", err)
	}
	states := orchestrator.NewDiskvStateStore(cfg.StateDir(dir))

	sandboxes := sandbox.NewManager(sandbox.Options{
		MemoryMB:          cfg.Sandbox.MemoryMB,
		ExtraAllowedPaths: cfg.Sandbox.ExtraAllowedPaths,
	})
	requester := permission.Requester(terminalRequester{})
	if grantAll {
		requester = permission.AutoGrant
	}
	permissions := permission.NewManager(requester)

	exec := executor.New(sandboxes, permissions, logger, executor.Options{
		Shell:          cfg.Executor.Shell,
		DefaultTimeout: cfg.Executor.DefaultTimeout,
	})
	rec := recovery.New(exec, logger, cfg.Recovery.MaxRetries)

	return &stack{
		cfg:  cfg,
		orch: orchestrator.New(exec, rec, workflows, states, logger),
		logs: closer,
	}, nil
}

// terminalRequester asks for permission grants on the terminal. The run
// suspends until the user answers.
type terminalRequester struct{}

func (terminalRequester) Request(ctx context.Context, kind types.PermissionKind, description string) (bool, error) {
	prompt := fmt.Sprintf("\nPermission required: %s\n  %s\nAllow?", kind, description)
	return cli.Confirm(os.Stdin, os.Stdout, prompt, false)
}

// pauseWithRetry requests a pause, retrying briefly when the run has not
// registered its execution yet (a signal can land before Run starts).
func pauseWithRetry(orch *orchestrator.Orchestrator, executionID string) error {
	var err error
	for i := 0; i < 50; i++ {
		err = orch.PauseWorkflow(executionID)
		if !errors.Is(err, orchestrator.ErrExecutionNotFound) {
			return err
		}
		time.Sleep(20 * time.Millisecond)
	}
	return err
}

// listWorkflows prints the stored workflows, one per line.
func listWorkflows() error {
	stack, err := buildStack(false)
	if err != nil {
		return err
	}
	defer stack.Close()

	workflows, err := stack.orch.ListWorkflows()
	if err != nil {
		return err
	}
	if len(workflows) == 0 {
		fmt.Println("No workflows stored. Add one with: taskpilot add <file.yaml>")
		return nil
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })
	fmt.Println("Available workflows:")
	for _, wf := range workflows {
		desc := wf.Description
		if desc == "" {
			desc = wf.Name
		}
		fmt.Printf("  %-24s %s\n", wf.ID, desc)
	}
	return nil
}

// printResult renders an execution result for the terminal and returns a
// non-nil error for failed runs so the process exits non-zero.
func printResult(result types.ExecutionResult) error {
	for _, r := range result.Results {
		marker := "ok"
		if !r.Success {
			marker = "failed"
		}
		fmt.Printf("[%d] %s (%s)\n", r.Index, marker, r.Duration.Round(time.Millisecond))
		if out := strings.TrimSpace(r.Stdout); out != "" {
			fmt.Println(indent(out, "    "))
		}
		if errOut := strings.TrimSpace(r.Stderr); errOut != "" {
			fmt.Println(indent(errOut, "    ! "))
		}
	}

	switch result.Status {
	case types.ExecutionSuccess:
		fmt.Println("\nWorkflow completed successfully.")
		return nil
	case types.ExecutionPartial:
		if errors.Is(result.Err, orchestrator.ErrPaused) {
			fmt.Println("\nWorkflow paused. Resume with: taskpilot resume <execution-id>")
			return nil
		}
		return fmt.Errorf("workflow partially completed (%d steps): %v", len(result.Results), result.Err)
	default:
		return fmt.Errorf("workflow failed: %v", result.Err)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
