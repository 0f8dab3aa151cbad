package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// continuationMarkers route the leader's review back into another work
// cycle when any of them appears as a literal substring.
var continuationMarkers = []string{"追加作業が必要", "再度", "もう一度"}

// teamPattern runs the three-phase cycle of an ad-hoc leader/member team:
// the leader plans, every member executes its share, the leader reviews.
// The review either closes the task or sends the team around again.
type teamPattern struct {
	leader  store.Agent
	members []store.Agent
}

func (p *teamPattern) Name() string { return "dynamic_team" }

func (p *teamPattern) Run(ctx context.Context, ec *execContext) (string, error) {
	transcript := []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf("Task: %s\n\n%s", ec.task.Title, ec.task.Description),
	}}

	for cycle := 0; cycle < maxCoordinationCycles; cycle++ {
		if err := ec.checkpoint(ctx); err != nil {
			return "", err
		}
		plan, err := ec.turn(ctx, p.leader, p.planPrompt(ec),
			"Break the remaining work down and assign each member their part.", transcript, nil)
		if err != nil {
			return "", fmt.Errorf("leader plan: %w", err)
		}
		transcript = append(transcript, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("[leader %s, plan] %s", p.leader.Name, plan),
		})
		ec.record(ctx, &p.leader.AgentID, models.InteractionInfo, plan, map[string]any{"phase": "leader_plan"})

		for _, m := range p.members {
			if err := ec.checkpoint(ctx); err != nil {
				return "", err
			}
			// Members with tools get the full reasoning loop; members
			// without tools make one direct call.
			toolReg := ec.registryFor(m, false)
			if len(toolReg.Names()) > 0 {
				toolReg = ec.registryFor(m, true)
			} else {
				toolReg = nil
			}
			out, err := ec.turn(ctx, m, p.memberPrompt(ec, m, plan),
				"Do your part of the plan and report your result.", transcript, toolReg)
			if err != nil {
				return "", fmt.Errorf("member %s turn: %w", m.Name, err)
			}
			transcript = append(transcript, llm.Message{
				Role:    "user",
				Content: fmt.Sprintf("[member %s] %s", m.Name, out),
			})
			ec.record(ctx, ptr(m.AgentID), models.InteractionInfo, out, map[string]any{"phase": "member_result", "member": m.Name})
		}

		if err := ec.checkpoint(ctx); err != nil {
			return "", err
		}
		review, err := ec.turn(ctx, p.leader, p.reviewPrompt(ec),
			"Review every member's result. If more work is needed, say exactly what; otherwise produce the final consolidated answer.",
			transcript, nil)
		if err != nil {
			return "", fmt.Errorf("leader review: %w", err)
		}
		transcript = append(transcript, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("[leader %s, review] %s", p.leader.Name, review),
		})

		if !needsAnotherCycle(review) {
			return review, nil
		}
		ec.record(ctx, &p.leader.AgentID, models.InteractionInfo,
			"Leader requested another work cycle.", map[string]any{"phase": "leader_review", "cycle": cycle + 1})
	}
	return "", fmt.Errorf("team coordination exceeded %d cycles without finishing", maxCoordinationCycles)
}

func needsAnotherCycle(review string) bool {
	for _, marker := range continuationMarkers {
		if strings.Contains(review, marker) {
			return true
		}
	}
	return false
}

func (p *teamPattern) planPrompt(ec *execContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, leading a team:\n%s\n", p.leader.Name, describeAgents(p.members))
	sb.WriteString("Produce a concrete work breakdown: what each member should do next, in their own words.\n\n")
	sb.WriteString(modeInstruction(ec.task.AutoMode))
	return sb.String()
}

func (p *teamPattern) memberPrompt(ec *execContext, m store.Agent, plan string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. %s\n", m.Name, m.Role)
	fmt.Fprintf(&sb, "Your team leader's current plan:\n%s\n\nDo only your own part and report the result.\n\n", plan)
	sb.WriteString(modeInstruction(ec.task.AutoMode))
	return sb.String()
}

func (p *teamPattern) reviewPrompt(ec *execContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, reviewing your team's results.\n", p.leader.Name)
	sb.WriteString("If the results complete the task, write the final consolidated answer. ")
	sb.WriteString("If more work is needed, state precisely what remains.\n\n")
	sb.WriteString(modeInstruction(ec.task.AutoMode))
	return sb.String()
}
