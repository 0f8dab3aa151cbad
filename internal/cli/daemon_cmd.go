package cli

import (
	"github.com/skoibuchi/ai-agent-team-management/internal/config"
	"github.com/skoibuchi/ai-agent-team-management/internal/daemon"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var (
		port          int
		dev           bool
		pprofAddr     string
		workspace     string
		dbDriver      string
		dbURL         string
		recoverySec   float64
		maxConcurrent int
		enableOtel    bool
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:          home,
				Port:          port,
				Dev:           dev,
				PprofAddr:     pprofAddr,
				Workspace:     workspace,
				DBDriver:      dbDriver,
				DBURL:         dbURL,
				RecoverySec:   recoverySec,
				MaxConcurrent: maxConcurrent,
				EnableOtel:    enableOtel,
				Version:       cmd.Root().Version,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", daemon.DefaultPort, "Port for the HTTP API")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Root directory for agent file tools")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite", "Store driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string")
	cmd.Flags().Float64Var(&recoverySec, "recovery-interval", 30.0, "Recovery sweep interval (seconds)")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 4, "Max tasks recovered per sweep pass")
	cmd.Flags().BoolVar(&enableOtel, "otel", false, "Enable OpenTelemetry metrics")

	return cmd
}
