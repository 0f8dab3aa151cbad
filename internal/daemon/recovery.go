package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/httpapi"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// runRecovery re-executes tasks a previous process left in running state. A
// running row whose execution this process does not hold is an orphan: its
// status goes back to pending, the interruption lands in the trail, and the
// task runs again from the durable history.
func runRecovery(ctx context.Context, opts StartOptions, app *httpapi.App) {
	interval := time.Duration(opts.RecoverySec * float64(time.Second))
	if interval <= 0 {
		interval = 30 * time.Second
	}
	max := opts.MaxConcurrent
	if max <= 0 {
		max = models.DefaultRecoveryConcurrency
	}

	// Sweep immediately so interrupted work resumes without waiting a tick.
	recoverOrphans(ctx, app, max)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recoverOrphans(ctx, app, max)
		}
	}
}

// recoverOrphans returns the number of tasks it re-executed.
func recoverOrphans(ctx context.Context, app *httpapi.App, max int) int {
	tasks, err := app.Store.ListRunningTasks(ctx)
	if err != nil {
		slog.Error("recovery sweep list running tasks", "err", err)
		return 0
	}

	n := 0
	for _, t := range tasks {
		if app.Orch.IsExecuting(t.TaskID) {
			continue
		}
		if n >= max {
			break
		}
		if err := app.Store.SetTaskStatus(ctx, t.TaskID, models.TaskPending, nil, nil); err != nil {
			slog.Error("recovery sweep reset task", "task_id", t.TaskID, "err", err)
			continue
		}
		if _, err := app.Store.CreateInteraction(ctx, store.Interaction{
			TaskID:          t.TaskID,
			InteractionType: models.InteractionInfo,
			Content:         "Execution was interrupted by a daemon restart; re-executing.",
			Metadata:        map[string]any{"reason": "daemon_restart"},
		}); err != nil {
			slog.Warn("recovery sweep record interruption", "task_id", t.TaskID, "err", err)
		}
		if err := app.Orch.Execute(ctx, t.TaskID); err != nil {
			slog.Error("recovery sweep re-execute", "task_id", t.TaskID, "err", err)
			continue
		}
		slog.Info("recovered interrupted task", "task_id", t.TaskID, "title", t.Title)
		n++
	}
	return n
}
