package sandbox

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
)

// WrapCommand returns an *exec.Cmd that runs binary with args inside the
// workspace. On Linux with bubblewrap (bwrap) available, the command runs in
// a minimal sandbox where only the workspace is writable; elsewhere it runs
// plain with the workspace as working directory.
func WrapCommand(ctx context.Context, workspace, binary string, args []string) *exec.Cmd {
	plain := func() *exec.Cmd {
		cmd := exec.CommandContext(ctx, binary, args...)
		cmd.Dir = workspace
		return cmd
	}
	if workspace == "" || runtime.GOOS != "linux" {
		return plain()
	}
	bwrap, err := exec.LookPath("bwrap")
	if err != nil {
		return plain()
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return plain()
	}
	bwrapArgs := []string{
		"--bind", abs, abs,
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/lib", "/lib",
		"--ro-bind", "/lib64", "/lib64",
		"--ro-bind", "/bin", "/bin",
		"--dev", "/dev",
		"--proc", "/proc",
		"--tmpfs", "/tmp",
		"--chdir", abs,
		"--unshare-pid",
		"--", binary,
	}
	bwrapArgs = append(bwrapArgs, args...)
	cmd := exec.CommandContext(ctx, bwrap, bwrapArgs...)
	cmd.Dir = abs
	return cmd
}
