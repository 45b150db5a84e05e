package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/orchestrator"
	"github.com/taskpilot/taskpilot/internal/types"
)

var addCmd = &cobra.Command{
	Use:   "add <file.yaml>",
	Short: "Add a workflow definition to the store",
	Long: `Validate a workflow YAML file and save it to the workflow store.

The workflow's id becomes the handle for 'taskpilot run'. Adding a
workflow with an existing id replaces it.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func loadWorkflowFile(path string) (*types.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	wf, err := orchestrator.DecodeWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if wf.ID == "" {
		return nil, fmt.Errorf("%s: workflow id is required", filepath.Base(path))
	}
	return wf, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	wf, err := loadWorkflowFile(args[0])
	if err != nil {
		return err
	}

	stack, err := buildStack(false)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.orch.StoreWorkflow(wf); err != nil {
		return err
	}
	fmt.Printf("Added workflow %s (%d steps)\n", wf.ID, len(wf.Steps))
	return nil
}
