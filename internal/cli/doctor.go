package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/skoibuchi/ai-agent-team-management/internal/config"
	"github.com/skoibuchi/ai-agent-team-management/internal/daemon"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify runtime dependencies and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()

			var problems []string

			// The home directory must be creatable for the store and run files.
			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("home %s is not writable: %v", home, err))
			}

			// Agents without a provider key can only run against a stub runtime.
			if os.Getenv("ANTHROPIC_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
				_, _ = fmt.Fprintln(out, "warning: neither ANTHROPIC_API_KEY nor OPENAI_API_KEY is set; agent turns will fail unless an agent overrides its key env")
			}

			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				problems = append(problems, fmt.Sprintf("daemon status: %v", err))
			} else if st.Running {
				_, _ = fmt.Fprintf(out, "daemon running (pid %d, addr %s)\n", st.PID, st.Addr)
			} else {
				_, _ = fmt.Fprintln(out, "daemon not running; start it with 'agentteam start'")
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}
	return cmd
}
