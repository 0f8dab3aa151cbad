package sandbox

import (
	"context"
	"strings"
	"testing"
)

func TestWrapCommand_plain(t *testing.T) {
	t.Parallel()
	cmd := WrapCommand(context.Background(), "", "echo", []string{"hi"})
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hi" {
		t.Errorf("output: %q", out)
	}
}
