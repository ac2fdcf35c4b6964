package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/jcjurado/outreach/internal/constants"
	"github.com/jcjurado/outreach/internal/temporal"
	"github.com/jcjurado/outreach/internal/workflows"
)

var replayCmd = &cobra.Command{
	Use:   "replay HISTORY_JSON...",
	Short: "Replay exported run histories against the current workflow code",
	Long: `Replay workflow histories exported with "temporal workflow show --output json".
A failure means the current code is not deterministic with respect to that
history and must be gated with workflow.GetVersion before deploying.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func newReplayer() worker.WorkflowReplayer {
	replayer := worker.NewWorkflowReplayer()
	replayer.RegisterWorkflowWithOptions(workflows.OutreachWorkflow, workflow.RegisterOptions{Name: constants.OutreachWorkflowName})
	replayer.RegisterWorkflowWithOptions(workflows.DeliveryWorkflow, workflow.RegisterOptions{Name: constants.DeliveryWorkflowName})
	return replayer
}

func runReplay(cmd *cobra.Command, args []string) error {
	replayer := newReplayer()
	logger := temporal.NewZapAdapter(newLogger())
	for _, path := range args {
		if err := replayer.ReplayWorkflowHistoryFromJSONFile(logger, path); err != nil {
			return fmt.Errorf("replay %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replay ok: %s\n", path)
	}
	return nil
}
