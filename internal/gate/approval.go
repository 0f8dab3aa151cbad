package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/otel"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// DefaultApprovalTimeout is how long a pending tool-use request waits before
// it is marked timed out and treated as rejected.
const DefaultApprovalTimeout = 300 * time.Second

// ApprovalGate requests permission to use tools and waits for a decision.
// Unlike the human-input gate it has a deadline: nobody deciding is a
// rejection, not an indefinite stall.
type ApprovalGate struct {
	Store        store.Store
	Pub          Publisher
	Log          *slog.Logger
	PollInterval time.Duration
	Timeout      time.Duration
}

func NewApprovalGate(st store.Store, pub Publisher, log *slog.Logger) *ApprovalGate {
	if pub == nil {
		pub = nopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ApprovalGate{
		Store:        st,
		Pub:          pub,
		Log:          log,
		PollInterval: defaultPollInterval,
		Timeout:      DefaultApprovalTimeout,
	}
}

// Request records a pending tool-use request and announces it to all
// subscribers. It does not block.
func (g *ApprovalGate) Request(ctx context.Context, taskID, agentID string, toolNames []string, reason string) (store.ApprovalRequest, error) {
	req, err := g.Store.CreateApproval(ctx, store.ApprovalRequest{
		AgentID:   agentID,
		TaskID:    &taskID,
		ToolNames: toolNames,
		Reason:    reason,
		Status:    models.ApprovalPending,
	})
	if err != nil {
		return store.ApprovalRequest{}, fmt.Errorf("record approval request: %w", err)
	}
	g.Pub.PublishBroadcast("approval_requested", map[string]any{
		"approval_id": req.ApprovalID,
		"task_id":     taskID,
		"agent_id":    agentID,
		"tool_names":  toolNames,
		"reason":      reason,
	})
	g.Log.Info("approval requested", "task_id", taskID, "approval_id", req.ApprovalID, "tools", toolNames)
	return req, nil
}

// Wait blocks until the request is decided, the task is cancelled, or the
// timeout elapses. On timeout the request is marked timed out and Wait
// reports a rejection.
func (g *ApprovalGate) Wait(ctx context.Context, approvalID, taskID string) (bool, error) {
	start := time.Now()
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	interval := g.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	deadline := start.Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			otel.RecordGateWait(ctx, "approval", "aborted", time.Since(start))
			return false, ctx.Err()
		case <-ticker.C:
		}

		req, err := g.Store.GetApproval(ctx, approvalID)
		if err != nil {
			return false, fmt.Errorf("poll approval %s: %w", approvalID, err)
		}
		switch req.Status {
		case models.ApprovalApproved:
			otel.RecordGateWait(ctx, "approval", "approved", time.Since(start))
			return true, nil
		case models.ApprovalRejected:
			otel.RecordGateWait(ctx, "approval", "rejected", time.Since(start))
			return false, nil
		case models.ApprovalTimeout:
			otel.RecordGateWait(ctx, "approval", "timeout", time.Since(start))
			return false, nil
		}

		status, err := g.Store.TaskStatus(ctx, taskID)
		if err != nil {
			return false, fmt.Errorf("poll task %s: %w", taskID, err)
		}
		if status == models.TaskCancelled {
			otel.RecordGateWait(ctx, "approval", "cancelled", time.Since(start))
			return false, ErrTaskCancelled
		}

		if time.Now().After(deadline) {
			note := "timed out waiting for a decision"
			// Only a still-pending request transitions to timeout; a decision
			// that lands in the same instant wins.
			changed, err := g.Store.ResolveApproval(ctx, approvalID, models.ApprovalTimeout, &note)
			if err != nil {
				return false, fmt.Errorf("time out approval %s: %w", approvalID, err)
			}
			if !changed {
				continue
			}
			g.Pub.PublishBroadcast("approval_timeout", map[string]any{
				"approval_id": approvalID,
				"task_id":     taskID,
			})
			g.Log.Warn("approval timed out", "task_id", taskID, "approval_id", approvalID)
			otel.RecordGateWait(ctx, "approval", "timeout", time.Since(start))
			return false, nil
		}
	}
}

// Approve marks a pending request approved. Deciding an already-decided
// request is a no-op and reports false.
func (g *ApprovalGate) Approve(ctx context.Context, approvalID string, note *string) (bool, error) {
	changed, err := g.Store.ResolveApproval(ctx, approvalID, models.ApprovalApproved, note)
	if err != nil {
		return false, err
	}
	if changed {
		g.publishDecision(ctx, approvalID, models.ApprovalApproved)
	}
	return changed, nil
}

// Reject marks a pending request rejected. Deciding an already-decided
// request is a no-op and reports false.
func (g *ApprovalGate) Reject(ctx context.Context, approvalID string, note *string) (bool, error) {
	changed, err := g.Store.ResolveApproval(ctx, approvalID, models.ApprovalRejected, note)
	if err != nil {
		return false, err
	}
	if changed {
		g.publishDecision(ctx, approvalID, models.ApprovalRejected)
	}
	return changed, nil
}

func (g *ApprovalGate) publishDecision(ctx context.Context, approvalID, status string) {
	req, err := g.Store.GetApproval(ctx, approvalID)
	if err != nil {
		g.Log.Warn("load decided approval", "approval_id", approvalID, "error", err)
		return
	}
	g.Pub.PublishBroadcast("approval_decided", map[string]any{
		"approval_id": approvalID,
		"task_id":     req.TaskID,
		"status":      status,
	})
}
