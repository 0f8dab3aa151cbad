package cli

import (
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
	"github.com/spf13/cobra"
)

func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}
	cmd.AddCommand(newTeamCreateCmd())
	cmd.AddCommand(newTeamListCmd())
	cmd.AddCommand(newTeamShowCmd())
	cmd.AddCommand(newTeamDeleteCmd())
	return cmd
}

func newTeamCreateCmd() *cobra.Command {
	var (
		description string
		leaderID    string
		memberIDs   []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a team (leader plus ordered members)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if leaderID == "" {
				return fmt.Errorf("--leader is required")
			}
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			created, err := api.CreateTeam(cmd.Context(), models.Team{
				Name:          args[0],
				Description:   description,
				LeaderAgentID: leaderID,
				MemberIDs:     memberIDs,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created team %s (%s)\n", created.TeamID, created.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Team description")
	cmd.Flags().StringVar(&leaderID, "leader", "", "Leader agent id")
	cmd.Flags().StringSliceVar(&memberIDs, "members", nil, "Member agent ids")
	_ = cmd.MarkFlagRequired("leader")
	return cmd
}

func newTeamListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			teams, err := api.ListTeams(cmd.Context())
			if err != nil {
				return err
			}
			if len(teams) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No teams")
				return nil
			}
			for _, t := range teams {
				active := "active"
				if !t.IsActive {
					active = "inactive"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %s (%d members)\n", t.TeamID, active, t.Name, len(t.MemberIDs))
			}
			return nil
		},
	}
	return cmd
}

func newTeamShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <team-id>",
		Short: "Show a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := api.GetTeam(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Team:     %s\n", t.TeamID)
			_, _ = fmt.Fprintf(out, "Name:     %s\n", t.Name)
			if t.Description != "" {
				_, _ = fmt.Fprintf(out, "About:    %s\n", t.Description)
			}
			_, _ = fmt.Fprintf(out, "Leader:   %s\n", t.LeaderAgentID)
			_, _ = fmt.Fprintf(out, "Members:  %s\n", strings.Join(t.MemberIDs, ", "))
			_, _ = fmt.Fprintf(out, "Active:   %t\n", t.IsActive)
			return nil
		},
	}
	return cmd
}

func newTeamDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <team-id>",
		Short: "Delete a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := api.DeleteTeam(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted team %s\n", args[0])
			return nil
		},
	}
	return cmd
}
