package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.yaml>",
	Short: "Validate a workflow definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := loadWorkflowFile(args[0])
		if err != nil {
			return err
		}
		if err := wf.Validate(); err != nil {
			return fmt.Errorf("invalid workflow: %w", err)
		}
		fmt.Printf("Workflow %s is valid (%d steps)\n", wf.ID, len(wf.Steps))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
