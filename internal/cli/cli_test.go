package cli

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	cmds := root.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "doctor", "task", "agent", "team", "approval", "respond", "apikey", "nuke"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	f := root.PersistentFlags().Lookup("home")
	if f == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func TestDaemonCmdHidden(t *testing.T) {
	root := NewRootCmd("")
	for _, c := range root.Commands() {
		if c.Name() == "daemon" {
			if !c.Hidden {
				t.Error("daemon subcommand should be hidden")
			}
			return
		}
	}
	t.Fatal("expected hidden daemon subcommand")
}

func TestTaskSubcommands(t *testing.T) {
	root := NewRootCmd("")
	var task *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "task" {
			task = c
		}
	}
	if task == nil {
		t.Fatal("expected task subcommand")
	}
	names := make(map[string]bool)
	for _, c := range task.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"analyze", "create", "list", "show", "execute", "cancel", "resume", "delete", "logs", "auto-mode"} {
		if !names[want] {
			t.Errorf("expected task subcommand %q", want)
		}
	}
}

func TestApikeyGenerate(t *testing.T) {
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"apikey", "generate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("apikey generate: %v", err)
	}
	out := buf.String()
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !regexp.MustCompile(`AGENTTEAM_API_KEY`).MatchString(out) {
		t.Errorf("output should mention AGENTTEAM_API_KEY")
	}
	if !regexp.MustCompile(`X-API-Key`).MatchString(out) {
		t.Errorf("output should mention X-API-Key")
	}
}

func TestTaskAutoMode_rejectsBadValue(t *testing.T) {
	root := NewRootCmd("")
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"--home", t.TempDir(), "task", "auto-mode", "t1", "maybe"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for invalid auto-mode value")
	}
}
