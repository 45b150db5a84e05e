package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-id | file.yaml>",
	Short: "Run a workflow",
	Long: `Execute a workflow to completion, by stored id or from a YAML file.
A file argument is validated and added to the store before running.

Ctrl-C pauses the run at the next step boundary instead of killing it;
the snapshot can be continued later with 'taskpilot resume'. A second
Ctrl-C aborts immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runVars     []string
	runGrantAll bool
)

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "context variable (format: name=value)")
	runCmd.Flags().BoolVar(&runGrantAll, "grant-all", false, "grant every permission request without asking")
	rootCmd.AddCommand(runCmd)
}

func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, v := range pairs {
		name, value, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid variable format: %s (expected name=value)", v)
		}
		vars[name] = value
	}
	return vars, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ref := args[0]

	vars, err := parseVars(runVars)
	if err != nil {
		return err
	}

	stack, err := buildStack(runGrantAll)
	if err != nil {
		return err
	}
	defer stack.Close()

	workflowID := ref
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") {
		wf, err := loadWorkflowFile(ref)
		if err != nil {
			return err
		}
		if err := stack.orch.StoreWorkflow(wf); err != nil {
			return err
		}
		workflowID = wf.ID
	}

	exec, err := stack.orch.NewExecution(workflowID, vars)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal pauses at the next step boundary, second one aborts.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Println("\nPausing at the next step boundary (Ctrl-C again to abort)...")
		go func() {
			if err := pauseWithRetry(stack.orch, exec.ID); err != nil {
				fmt.Fprintf(os.Stderr, "pause failed: %v\n", err)
			}
		}()
		<-sigChan
		cancel()
	}()

	fmt.Printf("Running workflow %s (execution %s)\n\n", workflowID, exec.ID)
	return printResult(stack.orch.Run(ctx, exec))
}
