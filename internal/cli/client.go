package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/internal/config"
	"github.com/skoibuchi/ai-agent-team-management/internal/daemon"
	"github.com/skoibuchi/ai-agent-team-management/pkg/client"
	"github.com/spf13/cobra"
)

// apiClient resolves the running daemon's address from its run files and
// returns an SDK client for it. Entity and lifecycle commands go through the
// HTTP API so execution happens inside the daemon's orchestrator, not in the
// CLI process.
func apiClient(cmd *cobra.Command) (*client.Client, error) {
	home := config.MustHomeFrom(cmd.Context())
	st, err := daemon.Status(cmd.Context(), home)
	if err != nil {
		return nil, err
	}
	if !st.Running || st.Addr == "" {
		return nil, fmt.Errorf("agentteam is not running; run 'agentteam start'")
	}
	addr := st.Addr
	// The daemon binds all interfaces; reach it locally.
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "localhost:" + strings.TrimPrefix(addr, "0.0.0.0:")
	}
	return client.New("http://"+addr, os.Getenv("AGENTTEAM_API_KEY")), nil
}
