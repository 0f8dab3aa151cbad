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

// autoModeAnswer is the synthetic answer recorded when a task running in
// automatic mode would otherwise block on a human question.
const autoModeAnswer = "Automatic mode is enabled; no human is watching this task. Proceed with your best judgment."

// HumanGate asks a human a question and blocks until it is answered. There is
// no timeout: an unanswered question waits until a human responds or the task
// is cancelled.
type HumanGate struct {
	Store        store.Store
	Pub          Publisher
	Log          *slog.Logger
	PollInterval time.Duration
}

func NewHumanGate(st store.Store, pub Publisher, log *slog.Logger) *HumanGate {
	if pub == nil {
		pub = nopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &HumanGate{Store: st, Pub: pub, Log: log, PollInterval: defaultPollInterval}
}

// Ask records the question and waits for the answer. In automatic mode the
// gate never blocks: it records an informational interaction noting the
// skipped question and returns a synthetic answer immediately.
func (g *HumanGate) Ask(ctx context.Context, taskID, agentID, question string, autoMode bool) (string, error) {
	var aid *string
	if agentID != "" {
		aid = &agentID
	}
	if autoMode {
		in, err := g.Store.CreateInteraction(ctx, store.Interaction{
			TaskID:          taskID,
			AgentID:         aid,
			InteractionType: models.InteractionInfo,
			Content:         "Question skipped (automatic mode): " + question,
			Metadata: map[string]any{
				"skipped_question": question,
				"reason":           "auto_mode",
			},
		})
		if err != nil {
			return "", fmt.Errorf("record skipped question: %w", err)
		}
		g.Pub.PublishTask(taskID, "interaction", map[string]any{
			"interaction_id":   in.InteractionID,
			"interaction_type": in.InteractionType,
			"content":          in.Content,
		})
		otel.RecordGateWait(ctx, "human_input", "skipped", 0)
		return autoModeAnswer, nil
	}

	start := time.Now()
	in, err := g.Store.CreateInteraction(ctx, store.Interaction{
		TaskID:           taskID,
		AgentID:          aid,
		InteractionType:  models.InteractionQuestion,
		Content:          question,
		RequiresResponse: true,
	})
	if err != nil {
		return "", fmt.Errorf("record question: %w", err)
	}
	g.Pub.PublishTask(taskID, "question", map[string]any{
		"interaction_id": in.InteractionID,
		"content":        question,
		"agent_id":       agentID,
	})
	g.Log.Info("waiting for human input", "task_id", taskID, "interaction_id", in.InteractionID)

	interval := g.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			otel.RecordGateWait(ctx, "human_input", "aborted", time.Since(start))
			return "", ctx.Err()
		case <-ticker.C:
		}

		cur, err := g.Store.GetInteraction(ctx, in.InteractionID)
		if err != nil {
			return "", fmt.Errorf("poll question %s: %w", in.InteractionID, err)
		}
		if cur.Response != nil {
			answer := *cur.Response
			resp, err := g.Store.CreateInteraction(ctx, store.Interaction{
				TaskID:          taskID,
				AgentID:         aid,
				InteractionType: models.InteractionUserResponse,
				Content:         answer,
				Metadata:        map[string]any{"question_id": in.InteractionID},
			})
			if err != nil {
				return "", fmt.Errorf("record user response: %w", err)
			}
			g.Pub.PublishTask(taskID, "interaction", map[string]any{
				"interaction_id":   resp.InteractionID,
				"interaction_type": resp.InteractionType,
				"content":          answer,
			})
			otel.RecordGateWait(ctx, "human_input", "answered", time.Since(start))
			g.Log.Info("human input received", "task_id", taskID, "interaction_id", in.InteractionID)
			return answer, nil
		}

		status, err := g.Store.TaskStatus(ctx, taskID)
		if err != nil {
			return "", fmt.Errorf("poll task %s: %w", taskID, err)
		}
		if status == models.TaskCancelled {
			otel.RecordGateWait(ctx, "human_input", "cancelled", time.Since(start))
			return "", ErrTaskCancelled
		}
	}
}
