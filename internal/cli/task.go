package cli

import (
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/pkg/client"
	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newTaskAnalyzeCmd())
	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskExecuteCmd())
	cmd.AddCommand(newTaskCancelCmd())
	cmd.AddCommand(newTaskResumeCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskLogsCmd())
	cmd.AddCommand(newTaskAutoModeCmd())
	return cmd
}

func newTaskAnalyzeCmd() *cobra.Command {
	var provider, model string

	cmd := &cobra.Command{
		Use:   "analyze <description>",
		Short: "Classify a task and recommend tools for it, without creating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			analysis, err := api.AnalyzeTask(cmd.Context(), client.AnalyzeTaskRequest{
				Description: args[0],
				Provider:    provider,
				Model:       model,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Type:       %s\n", analysis.TaskType)
			_, _ = fmt.Fprintf(out, "Complexity: %s\n", analysis.Complexity)
			if len(analysis.RecommendedTools) > 0 {
				_, _ = fmt.Fprintf(out, "Tools:      %s\n", strings.Join(analysis.RecommendedTools, ", "))
			} else {
				_, _ = fmt.Fprintln(out, "Tools:      none recommended")
			}
			if analysis.Reasoning != "" {
				_, _ = fmt.Fprintf(out, "Reasoning:  %s\n", analysis.Reasoning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider for the analysis (defaults to the server's)")
	cmd.Flags().StringVar(&model, "model", "", "Model name for the analysis")
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		description string
		priority    string
		autoMode    bool
		agentID     string
		teamID      string
		leaderID    string
		memberIDs   []string
		toolNames   []string
		execute     bool
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task (optionally start it immediately)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			req := client.CreateTaskRequest{
				Title:       args[0],
				Description: description,
				Priority:    priority,
				AutoMode:    autoMode,
				ToolNames:   toolNames,
				Execute:     execute,
			}
			if agentID != "" {
				req.AgentID = &agentID
			}
			if teamID != "" {
				req.TeamID = &teamID
			}
			if leaderID != "" {
				req.TeamLeaderID = &leaderID
				req.TeamMemberIDs = memberIDs
			}
			task, err := api.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %s (%s)\n", task.TaskID, task.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Task description (defaults to the title)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority: low, medium, or high")
	cmd.Flags().BoolVar(&autoMode, "auto", false, "Auto mode: agents proceed without asking questions")
	cmd.Flags().StringVar(&agentID, "agent", "", "Assign to this agent")
	cmd.Flags().StringVar(&teamID, "team", "", "Assign to this team (leader coordinates members)")
	cmd.Flags().StringVar(&leaderID, "leader", "", "Ad-hoc team leader agent")
	cmd.Flags().StringSliceVar(&memberIDs, "members", nil, "Ad-hoc team member agents (with --leader)")
	cmd.Flags().StringSliceVar(&toolNames, "tools", nil, "Restrict the task to these tools")
	cmd.Flags().BoolVar(&execute, "execute", false, "Start execution immediately")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			tasks, err := api.ListTasks(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
				return nil
			}
			for _, t := range tasks {
				st := t.Status
				if t.DetailedStatus != "" && t.DetailedStatus != t.Status {
					st = t.DetailedStatus
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s  %s\n", t.TaskID, st, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max tasks to return")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var interactions int

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its recent interactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			task, err := api.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Task:     %s\n", task.TaskID)
			_, _ = fmt.Fprintf(out, "Title:    %s\n", task.Title)
			_, _ = fmt.Fprintf(out, "Status:   %s\n", task.Status)
			if task.DetailedStatus != "" && task.DetailedStatus != task.Status {
				_, _ = fmt.Fprintf(out, "Detail:   %s\n", task.DetailedStatus)
			}
			if task.Priority != "" {
				_, _ = fmt.Fprintf(out, "Priority: %s\n", task.Priority)
			}
			if task.AgentID != nil {
				_, _ = fmt.Fprintf(out, "Agent:    %s\n", *task.AgentID)
			}
			if task.TeamLeaderID != nil {
				_, _ = fmt.Fprintf(out, "Leader:   %s\n", *task.TeamLeaderID)
				_, _ = fmt.Fprintf(out, "Members:  %s\n", strings.Join(task.TeamMemberIDs, ", "))
			}
			if task.Result != nil && *task.Result != "" {
				_, _ = fmt.Fprintf(out, "Result:\n%s\n", *task.Result)
			}
			if task.ErrorMessage != nil && *task.ErrorMessage != "" {
				_, _ = fmt.Fprintf(out, "Error:    %s\n", *task.ErrorMessage)
			}

			if interactions > 0 {
				hist, err := api.ListInteractions(cmd.Context(), task.TaskID, client.InteractionQuery{Limit: interactions})
				if err != nil {
					return err
				}
				if len(hist) > 0 {
					_, _ = fmt.Fprintln(out, "\nInteractions:")
					for _, in := range hist {
						marker := ""
						if in.RequiresResponse && in.Response == nil {
							marker = " (awaiting response)"
						}
						_, _ = fmt.Fprintf(out, "  [%s] %s%s\n", in.InteractionType, firstLine(in.Content), marker)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&interactions, "interactions", 10, "Recent interactions to include (0 disables)")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func newTaskExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <task-id>",
		Short: "Start execution of a pending or finished task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := api.ExecuteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Executing task %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func newTaskCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := api.CancelTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for task %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func newTaskResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <task-id> <message>",
		Short: "Resume a completed or failed task with a follow-up instruction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := api.SendMessage(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Resumed task %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and its history (running tasks are refused)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := api.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func newTaskLogsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs <task-id>",
		Short: "Show a task's execution audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			entries, err := api.ListExecutionLog(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				tool := ""
				if e.ToolName != nil {
					tool = " tool=" + *e.ToolName
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %s%s (%dms)\n",
					e.CreatedAt.Format("15:04:05"), e.Status, e.Action, tool, e.DurationMs)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Max entries to return (0 = all)")
	return cmd
}

func newTaskAutoModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-mode <task-id> <on|off>",
		Short: "Toggle a task's auto mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable bool
			switch args[1] {
			case "on":
				enable = true
			case "off":
				enable = false
			default:
				return fmt.Errorf("auto-mode must be %q or %q", "on", "off")
			}
			api, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := api.SetAutoMode(cmd.Context(), args[0], enable); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s auto mode: %s\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}
