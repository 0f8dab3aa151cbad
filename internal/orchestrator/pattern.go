package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/internal/agent/runtime"
	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/internal/tools"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// maxCoordinationCycles bounds the supervisor and team loops. Neither loop
// has a natural termination guarantee, so hitting the cap fails the task
// rather than spinning on model output forever.
const maxCoordinationCycles = 20

// Pattern is one coordination strategy. Run drives the involved agents to a
// final result, appending interactions through the execution context as it
// goes. A returned gate.ErrTaskCancelled means cooperative cancellation, not
// failure.
type Pattern interface {
	Name() string
	Run(ctx context.Context, ec *execContext) (string, error)
}

// execContext carries the per-execution wiring a pattern needs: the task,
// extra tools already cleared through the approval gate, the interaction
// sink, and the cancellation checkpoint.
type execContext struct {
	o          *Orchestrator
	task       store.Task
	extraTools []string
	emit       func(runtime.Event)
}

// checkpoint polls the store for cooperative cancellation. Patterns call it
// before every model turn and around every gate wait.
func (ec *execContext) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ec.o.checkCancelled(ctx, ec.task.TaskID)
}

// registryFor builds the tool registry an agent runs with: its own granted
// tools, plus any task-level extras that passed the approval gate, plus the
// human-input tool when asked for.
func (ec *execContext) registryFor(agent store.Agent, withAsk bool) *tools.Registry {
	names := append(append([]string(nil), agent.ToolNames...), ec.extraTools...)
	reg := ec.o.Tools.Select(names)
	if withAsk {
		tools.RegisterAskUser(reg, humanAsker{ec: ec, agent: agent})
	}
	return reg
}

func (ec *execContext) runtimeFor(agent store.Agent, reg *tools.Registry) (runtime.Runtime, error) {
	var invoker runtime.ToolInvoker
	if reg != nil {
		invoker = reg
	}
	return ec.o.NewRuntime(agent, invoker)
}

// turn runs one agent turn against the shared transcript and returns the
// final text. The runtime's events flow into the interaction sink.
func (ec *execContext) turn(ctx context.Context, agent store.Agent, system, input string, history []llm.Message, reg *tools.Registry) (string, error) {
	rt, err := ec.runtimeFor(agent, reg)
	if err != nil {
		return "", fmt.Errorf("resolve runtime for agent %s: %w", agent.Name, err)
	}
	var specs []llm.ToolSpec
	if reg != nil {
		specs = reg.Specs(nil)
	}
	res, err := rt.RunTurn(ctx, runtime.TurnRequest{
		Agent:   agent.AgentID,
		TaskID:  ec.task.TaskID,
		System:  system,
		Input:   input,
		History: history,
		Tools:   specs,
	}, ec.emit)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// record writes an interaction directly, outside the runtime event flow.
func (ec *execContext) record(ctx context.Context, agentID *string, typ, content string, meta map[string]any) {
	ec.o.recordInteraction(ctx, ec.task.TaskID, agentID, typ, content, meta)
}

// humanAsker routes the ask_user tool through the human-input gate, bound to
// this execution's task and agent.
type humanAsker struct {
	ec    *execContext
	agent store.Agent
}

func (a humanAsker) Ask(ctx context.Context, question string) (string, error) {
	if err := a.ec.checkpoint(ctx); err != nil {
		return "", err
	}
	answer, err := a.ec.o.Human.Ask(ctx, a.ec.task.TaskID, a.agent.AgentID, question, a.ec.task.AutoMode)
	if err != nil {
		return "", err
	}
	if err := a.ec.checkpoint(ctx); err != nil {
		return "", err
	}
	return answer, nil
}

// patternFor selects the coordination pattern from the task's fields: an
// explicit leader plus members means a dynamic team, a supervisor-typed
// assigned agent means supervised workers, anything else runs single-agent.
func (o *Orchestrator) patternFor(ctx context.Context, t store.Task) (Pattern, error) {
	if t.TeamLeaderID != nil && len(t.TeamMemberIDs) > 0 {
		leader, err := o.Store.GetAgent(ctx, *t.TeamLeaderID)
		if err != nil {
			return nil, fmt.Errorf("team leader: %w", err)
		}
		members := make([]store.Agent, 0, len(t.TeamMemberIDs))
		for _, id := range t.TeamMemberIDs {
			m, err := o.Store.GetAgent(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("team member: %w", err)
			}
			members = append(members, m)
		}
		return &teamPattern{leader: leader, members: members}, nil
	}
	if t.AgentID == nil {
		return nil, fmt.Errorf("task %s has no agent assigned", t.TaskID)
	}
	agent, err := o.Store.GetAgent(ctx, *t.AgentID)
	if err != nil {
		return nil, err
	}
	if agent.AgentType == models.AgentTypeSupervisor {
		workers, err := o.workersOf(ctx, agent.AgentID)
		if err != nil {
			return nil, err
		}
		if len(workers) == 0 {
			return nil, fmt.Errorf("supervisor %s has no workers", agent.Name)
		}
		return &supervisorPattern{supervisor: agent, workers: workers}, nil
	}
	return &singlePattern{agent: agent}, nil
}

func (o *Orchestrator) workersOf(ctx context.Context, supervisorID string) ([]store.Agent, error) {
	all, err := o.Store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	var workers []store.Agent
	for _, a := range all {
		if a.SupervisorID != nil && *a.SupervisorID == supervisorID {
			workers = append(workers, a)
		}
	}
	return workers, nil
}

// modeInstruction is injected into the first turn of every pattern. The two
// modes are mutually exclusive on purpose: an unattended agent must never
// stall on a question, an attended one must never guess past ambiguity.
func modeInstruction(autoMode bool) string {
	if autoMode {
		return "This task runs in automatic mode. Never ask the human operator anything and never use the ask_user tool. When something is ambiguous, make a reasonable assumption, state it, and proceed."
	}
	return "This task runs in interactive mode. Whenever the task is ambiguous or a decision needs human judgment, use the ask_user tool and wait for the answer. Do not answer a clarifying question on the operator's behalf."
}

func describeAgents(agents []store.Agent) string {
	var sb strings.Builder
	for _, a := range agents {
		fmt.Fprintf(&sb, "- %s: %s\n", a.Name, a.Role)
	}
	return sb.String()
}
