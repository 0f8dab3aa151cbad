package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Review tool approval requests",
	}
	cmd.AddCommand(newApprovalListCmd())
	cmd.AddCommand(newApprovalApproveCmd())
	cmd.AddCommand(newApprovalRejectCmd())
	return cmd
}

func newApprovalListCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending approval requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			reqs, err := api.ListPendingApprovals(cmd.Context(), agentID)
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No pending approvals")
				return nil
			}
			for _, r := range reqs {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  agent=%s  tools=%s  %s\n",
					r.ApprovalID, r.AgentID, strings.Join(r.ToolNames, ","), r.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Filter by agent id")
	return cmd
}

func newApprovalApproveCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "approve <approval-id>",
		Short: "Grant a pending approval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			var n *string
			if note != "" {
				n = &note
			}
			req, err := api.ApproveRequest(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Approved %s (tools: %s)\n", req.ApprovalID, strings.Join(req.ToolNames, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Optional note recorded with the decision")
	return cmd
}

func newApprovalRejectCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "reject <approval-id>",
		Short: "Deny a pending approval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			var n *string
			if note != "" {
				n = &note
			}
			req, err := api.RejectRequest(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s\n", req.ApprovalID)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Optional note recorded with the decision")
	return cmd
}
