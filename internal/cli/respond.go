package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRespondCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "respond [interaction-id] <answer>",
		Short: "Answer a pending agent question",
		Long:  "Answer a pending agent question. With --task and a single argument,\nthe answer goes to the task's oldest pending question.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}

			var interactionID, answer string
			switch len(args) {
			case 2:
				interactionID, answer = args[0], args[1]
			case 1:
				if taskID == "" {
					return fmt.Errorf("either pass an interaction id or use --task")
				}
				pending, err := api.ListPendingInteractions(cmd.Context(), taskID)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					return fmt.Errorf("task %s has no pending questions", taskID)
				}
				interactionID, answer = pending[0].InteractionID, args[0]
			}

			in, err := api.RespondInteraction(cmd.Context(), interactionID, answer)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Responded to %s\n", in.InteractionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "Answer the oldest pending question of this task")
	return cmd
}
