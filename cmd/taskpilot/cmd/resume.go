package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <execution-id>",
	Short: "Resume a paused workflow execution",
	Long: `Continue a paused workflow from its saved step boundary.

The snapshot keeps every result produced before the pause; the resumed
run picks up at the first unexecuted step. Resuming consumes the
snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var resumeGrantAll bool

func init() {
	resumeCmd.Flags().BoolVar(&resumeGrantAll, "grant-all", false, "grant every permission request without asking")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	executionID := args[0]

	stack, err := buildStack(resumeGrantAll)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Println("\nPausing at the next step boundary (Ctrl-C again to abort)...")
		go func() {
			if err := pauseWithRetry(stack.orch, executionID); err != nil {
				fmt.Fprintf(os.Stderr, "pause failed: %v\n", err)
			}
		}()
		<-sigChan
		cancel()
	}()

	fmt.Printf("Resuming execution %s\n\n", executionID)
	result, err := stack.orch.ResumeWorkflow(ctx, executionID)
	if err != nil {
		return err
	}
	return printResult(result)
}
