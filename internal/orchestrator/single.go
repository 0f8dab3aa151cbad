package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/internal/store"
)

// singlePattern runs the whole task as one tool-equipped turn of the assigned
// agent. The runtime's internal reasoning/tool loop does the heavy lifting;
// the pattern only frames the task and collects the final answer.
type singlePattern struct {
	agent store.Agent
}

func (p *singlePattern) Name() string { return "single_agent" }

func (p *singlePattern) Run(ctx context.Context, ec *execContext) (string, error) {
	if err := ec.checkpoint(ctx); err != nil {
		return "", err
	}
	reg := ec.registryFor(p.agent, true)
	system := p.systemPrompt(ec, reg.Names())
	input := fmt.Sprintf("Task: %s\n\n%s", ec.task.Title, ec.task.Description)

	out, err := ec.turn(ctx, p.agent, system, input, nil, reg)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("agent %s produced no answer", p.agent.Name)
	}
	return out, nil
}

func (p *singlePattern) systemPrompt(ec *execContext, toolNames []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. %s\n\n", p.agent.Name, p.agent.Role)
	sb.WriteString("Complete the task you are given and finish with a clear final answer.\n")
	if len(toolNames) > 0 {
		fmt.Fprintf(&sb, "Available tools: %s.\n", strings.Join(toolNames, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(modeInstruction(ec.task.AutoMode))
	return sb.String()
}
