package cli

import (
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}
	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentShowCmd())
	cmd.AddCommand(newAgentDeleteCmd())
	return cmd
}

func newAgentCreateCmd() *cobra.Command {
	var (
		role         string
		agentType    string
		supervisorID string
		provider     string
		model        string
		toolNames    []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			a := models.Agent{
				Name:        args[0],
				Role:        role,
				AgentType:   agentType,
				LLMProvider: provider,
				LLMModel:    model,
				ToolNames:   toolNames,
			}
			if supervisorID != "" {
				a.SupervisorID = &supervisorID
			}
			created, err := api.CreateAgent(cmd.Context(), a)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created agent %s (%s)\n", created.AgentID, created.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Agent role (system prompt persona)")
	cmd.Flags().StringVar(&agentType, "type", models.AgentTypeWorker, "Agent type: worker or supervisor")
	cmd.Flags().StringVar(&supervisorID, "supervisor", "", "Supervisor agent id (workers only)")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (e.g. anthropic, openai)")
	cmd.Flags().StringVar(&model, "model", "", "LLM model name")
	cmd.Flags().StringSliceVar(&toolNames, "tools", nil, "Tools this agent may use")
	return cmd
}

func newAgentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			agents, err := api.ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No agents")
				return nil
			}
			for _, a := range agents {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %-8s  %s\n", a.AgentID, a.AgentType, a.Status, a.Name)
			}
			return nil
		},
	}
	return cmd
}

func newAgentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			a, err := api.GetAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Agent:    %s\n", a.AgentID)
			_, _ = fmt.Fprintf(out, "Name:     %s\n", a.Name)
			_, _ = fmt.Fprintf(out, "Type:     %s\n", a.AgentType)
			_, _ = fmt.Fprintf(out, "Status:   %s\n", a.Status)
			if a.Role != "" {
				_, _ = fmt.Fprintf(out, "Role:     %s\n", a.Role)
			}
			if a.SupervisorID != nil {
				_, _ = fmt.Fprintf(out, "Supervisor: %s\n", *a.SupervisorID)
			}
			if a.LLMProvider != "" {
				_, _ = fmt.Fprintf(out, "LLM:      %s/%s\n", a.LLMProvider, a.LLMModel)
			}
			if len(a.ToolNames) > 0 {
				_, _ = fmt.Fprintf(out, "Tools:    %s\n", strings.Join(a.ToolNames, ", "))
			}
			return nil
		},
	}
	return cmd
}

func newAgentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := api.DeleteAgent(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted agent %s\n", args[0])
			return nil
		},
	}
	return cmd
}
