package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var pausedCmd = &cobra.Command{
	Use:   "paused",
	Short: "List paused workflow executions",
	Long: `List all paused execution snapshots with their progress.

Snapshots older than a day are marked stale. Use 'taskpilot resume' to
continue one, or 'taskpilot paused --discard <execution-id>' to drop it.`,
	Args: cobra.NoArgs,
	RunE: runPaused,
}

var pausedDiscard string

func init() {
	pausedCmd.Flags().StringVar(&pausedDiscard, "discard", "", "discard the snapshot with this execution id")
	rootCmd.AddCommand(pausedCmd)
}

func runPaused(cmd *cobra.Command, args []string) error {
	stack, err := buildStack(false)
	if err != nil {
		return err
	}
	defer stack.Close()

	if pausedDiscard != "" {
		if err := stack.orch.DiscardPaused(pausedDiscard); err != nil {
			return err
		}
		fmt.Printf("Discarded snapshot %s\n", pausedDiscard)
		return nil
	}

	summaries, err := stack.orch.PausedWorkflows()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No paused executions.")
		return nil
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].PausedAt.Before(summaries[j].PausedAt)
	})
	fmt.Println("Paused executions:")
	for _, s := range summaries {
		stale := ""
		if s.IsStale {
			stale = " (stale)"
		}
		fmt.Printf("  %s  %s  %d/%d steps  paused %s%s\n",
			s.ExecutionID, s.WorkflowName, s.CompletedSteps, s.TotalSteps,
			s.PausedAt.Format("2006-01-02 15:04"), stale)
	}
	return nil
}
