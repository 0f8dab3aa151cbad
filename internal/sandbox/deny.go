// Package sandbox screens and confines shell commands issued by agents.
// Commands run relative to the task workspace; on Linux they are wrapped in
// bubblewrap when available so only the workspace is writable.
package sandbox

import (
	"strings"
)

// shellDenyList contains substrings that must not appear in agent command
// lines. The store lives outside the workspace, so direct DB manipulation is
// also refused here as a second line of defense.
var shellDenyList = []string{
	"sqlite3",
	"DROP TABLE",
	"DELETE FROM",
	"chmod 777",
	"curl | sh",
	"wget | sh",
	"curl | bash",
	"wget | bash",
	"| sh",
	"| bash",
	"eval $(",
	"> /dev/sd",
	"mkfs.",
	"shutdown",
	"reboot",
	":(){ :|:& };:", // fork bomb
}

// BlockedShellCommand returns true if the command line contains any denied
// substring. Matching is case-insensitive. Call this before executing shell
// commands requested by agent output.
func BlockedShellCommand(cmdLine string) bool {
	lower := strings.ToLower(strings.TrimSpace(cmdLine))
	for _, deny := range shellDenyList {
		if strings.Contains(lower, strings.ToLower(deny)) {
			return true
		}
	}
	return false
}
