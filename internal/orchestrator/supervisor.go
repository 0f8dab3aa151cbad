package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// finishMarker ends the supervisor loop when it appears anywhere in the
// supervisor's response, case-insensitively.
const finishMarker = "FINISH"

// supervisorPattern alternates between the supervisor deciding who works
// next and that worker taking a turn against the shared transcript. Routing
// is a lenient substring scan of the supervisor's free-text response: the
// first worker name found wins, FINISH terminates, and no match at all
// defaults to the first worker so a rambling model never stalls the task.
type supervisorPattern struct {
	supervisor store.Agent
	workers    []store.Agent
}

func (p *supervisorPattern) Name() string { return "supervisor" }

func (p *supervisorPattern) Run(ctx context.Context, ec *execContext) (string, error) {
	transcript := []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf("Task: %s\n\n%s", ec.task.Title, ec.task.Description),
	}}
	system := p.supervisorPrompt(ec)

	for cycle := 0; cycle < maxCoordinationCycles; cycle++ {
		if err := ec.checkpoint(ctx); err != nil {
			return "", err
		}
		decision, err := ec.turn(ctx, p.supervisor, system,
			"Review the conversation and decide the next step.", transcript, nil)
		if err != nil {
			return "", fmt.Errorf("supervisor turn: %w", err)
		}
		transcript = append(transcript, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("[supervisor %s] %s", p.supervisor.Name, decision),
		})

		next := p.route(decision)
		if next == nil {
			return decision, nil
		}

		if err := ec.checkpoint(ctx); err != nil {
			return "", err
		}
		ec.o.setWorkerStatus(ctx, next.AgentID, models.AgentRunning)
		reg := ec.registryFor(*next, true)
		out, err := ec.turn(ctx, *next, p.workerPrompt(ec, *next, reg.Names()),
			"Carry out the supervisor's latest instruction.", transcript, reg)
		ec.o.setWorkerStatus(ctx, next.AgentID, models.AgentIdle)
		if err != nil {
			return "", fmt.Errorf("worker %s turn: %w", next.Name, err)
		}
		transcript = append(transcript, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("[worker %s] %s", next.Name, out),
		})
	}
	return "", fmt.Errorf("supervisor coordination exceeded %d cycles without finishing", maxCoordinationCycles)
}

// route picks the next worker from the supervisor's response, or nil for
// FINISH. First match in response order wins; ties between worker names are
// broken by whichever appears, scanning workers in registration order.
func (p *supervisorPattern) route(decision string) *store.Agent {
	lower := strings.ToLower(decision)
	if strings.Contains(lower, strings.ToLower(finishMarker)) {
		return nil
	}
	for i := range p.workers {
		name := strings.ToLower(strings.TrimSpace(p.workers[i].Name))
		// A blank name would substring-match every decision.
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			return &p.workers[i]
		}
	}
	return &p.workers[0]
}

func (p *supervisorPattern) supervisorPrompt(ec *execContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a supervisor coordinating these workers:\n%s\n", p.supervisor.Name, describeAgents(p.workers))
	sb.WriteString("Each turn, either name the single worker who should act next and tell them what to do, ")
	fmt.Fprintf(&sb, "or reply %s with the final answer when the task is done.\n\n", finishMarker)
	sb.WriteString(modeInstruction(ec.task.AutoMode))
	return sb.String()
}

func (p *supervisorPattern) workerPrompt(ec *execContext, w store.Agent, toolNames []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. %s\n", w.Name, w.Role)
	sb.WriteString("You work under a supervisor; do the piece of work they just assigned you and report back concisely.\n")
	if len(toolNames) > 0 {
		fmt.Fprintf(&sb, "Available tools: %s.\n", strings.Join(toolNames, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(modeInstruction(ec.task.AutoMode))
	return sb.String()
}

func (o *Orchestrator) setWorkerStatus(ctx context.Context, agentID, status string) {
	if err := o.Store.SetAgentStatus(ctx, agentID, status); err != nil {
		o.Log.Warn("set worker status", "agent_id", agentID, "status", status, "error", err)
	}
}
