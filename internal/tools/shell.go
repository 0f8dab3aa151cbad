package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/sandbox"
)

const (
	defaultCommandTimeout = 60 * time.Second
	maxCommandTimeout     = 10 * time.Minute
	maxCommandOutput      = 64 * 1024
)

// RegisterShellTool adds run_command, which executes a shell command inside
// the task workspace. Commands are screened against the sandbox deny list and
// confined with bubblewrap where available.
func RegisterShellTool(r *Registry, workspace string) {
	r.Register(Tool{
		Spec: llmToolSpec("run_command",
			"Run a shell command in the task workspace and return its combined output. The command is sandboxed: only the workspace is writable.",
			objectSchema(map[string]any{
				"command":     map[string]any{"type": "string", "description": "shell command line"},
				"timeout_sec": map[string]any{"type": "integer", "description": "timeout in seconds (default 60)"},
			}, "command")),
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Command    string `json:"command"`
				TimeoutSec int    `json:"timeout_sec"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("run_command: bad arguments: %w", err)
			}
			if in.Command == "" {
				return "", fmt.Errorf("run_command: command is required")
			}
			if sandbox.BlockedShellCommand(in.Command) {
				return "", fmt.Errorf("run_command: command refused by policy")
			}

			timeout := defaultCommandTimeout
			if in.TimeoutSec > 0 {
				timeout = time.Duration(in.TimeoutSec) * time.Second
				if timeout > maxCommandTimeout {
					timeout = maxCommandTimeout
				}
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := sandbox.WrapCommand(ctx, workspace, "sh", []string{"-c", in.Command})
			out, err := cmd.CombinedOutput()
			if len(out) > maxCommandOutput {
				out = out[:maxCommandOutput]
			}
			if err != nil {
				if ctx.Err() == context.DeadlineExceeded {
					return "", fmt.Errorf("run_command: timed out after %s", timeout)
				}
				return fmt.Sprintf("command failed: %v\n%s", err, out), nil
			}
			if len(out) == 0 {
				return "(no output)", nil
			}
			return string(out), nil
		},
	})
}
