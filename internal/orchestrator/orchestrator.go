// Package orchestrator owns the task lifecycle state machine. It selects the
// coordination pattern for a task, runs it on its own goroutine, persists
// every lifecycle transition, and is the only writer of terminal task states.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/agent/runtime"
	"github.com/skoibuchi/ai-agent-team-management/internal/capabilities"
	"github.com/skoibuchi/ai-agent-team-management/internal/gate"
	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
	"github.com/skoibuchi/ai-agent-team-management/internal/otel"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/internal/tools"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// RuntimeFactory builds the step executor for one agent. The default resolves
// the agent's provider config into an LLM-backed runtime; tests swap in a
// scripted stub.
type RuntimeFactory func(agent store.Agent, invoker runtime.ToolInvoker) (runtime.Runtime, error)

// DefaultRuntimeFactory resolves the agent's LLM configuration.
func DefaultRuntimeFactory(agent store.Agent, invoker runtime.ToolInvoker) (runtime.Runtime, error) {
	cfg := llm.Config{
		Provider:    agent.LLMProvider,
		Model:       agent.LLMModel,
		Temperature: agent.Temperature,
		MaxTokens:   agent.MaxTokens,
	}
	if agent.LLMBaseURL != nil {
		cfg.BaseURL = *agent.LLMBaseURL
	}
	if agent.APIKeyEnv != nil {
		cfg.APIKeyEnv = *agent.APIKeyEnv
	}
	model, err := llm.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	return runtime.NewLLMRuntime(model, invoker), nil
}

type Orchestrator struct {
	Store      store.Store
	Tools      *tools.Registry
	Human      *gate.HumanGate
	Approval   *gate.ApprovalGate
	Pub        gate.Publisher
	Caps       *capabilities.Registry // optional outbound notifications
	Log        *slog.Logger
	NewRuntime RuntimeFactory

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

type Options struct {
	Store    store.Store
	Tools    *tools.Registry
	Pub      gate.Publisher
	Caps     *capabilities.Registry
	Log      *slog.Logger
	Runtime  RuntimeFactory
	Human    *gate.HumanGate
	Approval *gate.ApprovalGate
}

func New(opts Options) *Orchestrator {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Tools == nil {
		opts.Tools = tools.NewRegistry()
	}
	if opts.Runtime == nil {
		opts.Runtime = DefaultRuntimeFactory
	}
	if opts.Human == nil {
		opts.Human = gate.NewHumanGate(opts.Store, opts.Pub, opts.Log)
	}
	if opts.Approval == nil {
		opts.Approval = gate.NewApprovalGate(opts.Store, opts.Pub, opts.Log)
	}
	pub := opts.Pub
	if pub == nil {
		pub = noPublisher{}
	}
	return &Orchestrator{
		Store:      opts.Store,
		Tools:      opts.Tools,
		Human:      opts.Human,
		Approval:   opts.Approval,
		Pub:        pub,
		Caps:       opts.Caps,
		Log:        opts.Log,
		NewRuntime: opts.Runtime,
		running:    make(map[string]struct{}),
	}
}

type noPublisher struct{}

func (noPublisher) PublishTask(string, string, map[string]any) {}
func (noPublisher) PublishBroadcast(string, map[string]any)    {}

// Submit validates and persists a new task in pending state. A task in
// single-agent mode with no agent assigned gets the first available agent;
// if none exists the submission is rejected.
func (o *Orchestrator) Submit(ctx context.Context, t store.Task) (store.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return store.Task{}, errors.New("task title is required")
	}
	teamMode := t.TeamLeaderID != nil && len(t.TeamMemberIDs) > 0
	if t.TeamLeaderID != nil && len(t.TeamMemberIDs) == 0 {
		return store.Task{}, errors.New("team mode requires at least one member")
	}
	if teamMode {
		if t.AgentID != nil {
			return store.Task{}, errors.New("a task is either assigned to one agent or to a leader with members, not both")
		}
		if _, err := o.Store.GetAgent(ctx, *t.TeamLeaderID); err != nil {
			return store.Task{}, fmt.Errorf("team leader: %w", err)
		}
		for _, id := range t.TeamMemberIDs {
			if _, err := o.Store.GetAgent(ctx, id); err != nil {
				return store.Task{}, fmt.Errorf("team member: %w", err)
			}
		}
	} else if t.AgentID == nil {
		agents, err := o.Store.ListAgents(ctx)
		if err != nil {
			return store.Task{}, err
		}
		if len(agents) == 0 {
			return store.Task{}, errors.New("no agents exist to assign the task to")
		}
		t.AgentID = &agents[0].AgentID
	} else if _, err := o.Store.GetAgent(ctx, *t.AgentID); err != nil {
		return store.Task{}, fmt.Errorf("assigned agent: %w", err)
	}

	t.Status = models.TaskPending
	created, err := o.Store.CreateTask(ctx, t)
	if err != nil {
		return store.Task{}, err
	}
	o.Pub.PublishBroadcast("task_created", map[string]any{
		"task_id": created.TaskID,
		"title":   created.Title,
	})
	o.Log.Info("task submitted", "task_id", created.TaskID, "title", created.Title)
	return created, nil
}

// Execute transitions the task to running and starts its execution on a
// dedicated goroutine. A task that is already running is an error, never a
// double execution.
func (o *Orchestrator) Execute(ctx context.Context, taskID string) error {
	t, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status == models.TaskRunning {
		return fmt.Errorf("task %s is already running", taskID)
	}
	o.mu.Lock()
	if _, ok := o.running[taskID]; ok {
		o.mu.Unlock()
		return fmt.Errorf("task %s is already running", taskID)
	}
	o.running[taskID] = struct{}{}
	o.mu.Unlock()

	if err := o.Store.SetTaskStatus(ctx, taskID, models.TaskRunning, nil, nil); err != nil {
		o.release(taskID)
		return err
	}
	o.setAgentStatuses(ctx, t, models.AgentRunning)
	o.Pub.PublishTask(taskID, "task_started", map[string]any{"task_id": taskID})
	o.Log.Info("task started", "task_id", taskID)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(taskID)
		// The execution outlives the submitting request.
		o.run(context.Background(), taskID)
	}()
	return nil
}

// ExecuteWait runs the task to its terminal state on the calling goroutine.
func (o *Orchestrator) ExecuteWait(ctx context.Context, taskID string) error {
	t, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status == models.TaskRunning {
		return fmt.Errorf("task %s is already running", taskID)
	}
	o.mu.Lock()
	if _, ok := o.running[taskID]; ok {
		o.mu.Unlock()
		return fmt.Errorf("task %s is already running", taskID)
	}
	o.running[taskID] = struct{}{}
	o.mu.Unlock()
	defer o.release(taskID)

	if err := o.Store.SetTaskStatus(ctx, taskID, models.TaskRunning, nil, nil); err != nil {
		return err
	}
	o.setAgentStatuses(ctx, t, models.AgentRunning)
	o.Pub.PublishTask(taskID, "task_started", map[string]any{"task_id": taskID})
	o.run(ctx, taskID)
	return nil
}

func (o *Orchestrator) release(taskID string) {
	o.mu.Lock()
	delete(o.running, taskID)
	o.mu.Unlock()
}

// Wait blocks until every in-flight execution has reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// IsExecuting reports whether this process holds the execution of the task.
// The daemon's recovery sweep uses it to tell an orphaned running row from a
// live one.
func (o *Orchestrator) IsExecuting(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[taskID]
	return ok
}

// Cancel requests cooperative cancellation of a running task. The execution
// observes the new status at its next checkpoint and unwinds.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) error {
	t, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != models.TaskRunning {
		return fmt.Errorf("task %s is not running (status %s)", taskID, t.Status)
	}
	if err := o.Store.SetTaskStatus(ctx, taskID, models.TaskCancelled, nil, nil); err != nil {
		return err
	}
	o.Log.Info("task cancellation requested", "task_id", taskID)
	return nil
}

// ResumeWithMessage continues a finished task with a follow-up instruction.
// The description is rewritten to reference the prior outcome so the next
// execution has the conversational context, then the task runs again.
func (o *Orchestrator) ResumeWithMessage(ctx context.Context, taskID, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("resume message is required")
	}
	t, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != models.TaskCompleted && t.Status != models.TaskFailed {
		return fmt.Errorf("task %s cannot be resumed from status %s", taskID, t.Status)
	}
	o.recordInteraction(ctx, taskID, t.AgentID, models.InteractionUserMessage, message, nil)

	prior := "(no result recorded)"
	if t.Result != nil && *t.Result != "" {
		prior = *t.Result
	} else if t.ErrorMessage != nil && *t.ErrorMessage != "" {
		prior = "The previous attempt failed: " + *t.ErrorMessage
	}
	desc := fmt.Sprintf("%s\n\n--- Previous outcome ---\n%s\n\n--- Follow-up instruction ---\n%s",
		t.Description, prior, message)
	if err := o.Store.SetTaskDescription(ctx, taskID, desc); err != nil {
		return err
	}
	return o.Execute(ctx, taskID)
}

// DetailedStatus derives the refined status of a task. It is computed, never
// stored: a running task with an unanswered question is waiting for input, a
// running task with an undecided approval is waiting for approval.
func (o *Orchestrator) DetailedStatus(ctx context.Context, t store.Task) (string, error) {
	if t.Status != models.TaskRunning {
		return t.Status, nil
	}
	pending, err := o.Store.HasPendingInteraction(ctx, t.TaskID)
	if err != nil {
		return "", err
	}
	if pending {
		return models.DetailedWaitingInput, nil
	}
	pending, err = o.Store.HasPendingApproval(ctx, t.TaskID)
	if err != nil {
		return "", err
	}
	if pending {
		return models.DetailedWaitingApproval, nil
	}
	return models.TaskRunning, nil
}

// run drives one execution to its terminal state. It is the single place
// where running transitions to completed or failed.
func (o *Orchestrator) run(ctx context.Context, taskID string) {
	start := time.Now()
	t, err := o.Store.GetTask(ctx, taskID)
	if err != nil {
		o.Log.Error("load task for execution", "task_id", taskID, "error", err)
		return
	}
	pat, err := o.patternFor(ctx, t)
	if err != nil {
		o.finishFailed(ctx, t, "selection", start, err)
		return
	}
	o.appendLog(ctx, t.TaskID, t.AgentID, "task_execute", t.Title, "", models.LogStarted, nil, 0)

	ec := &execContext{o: o, task: t}
	ec.emit = o.interactionSink(t.TaskID)
	if err := o.resolveExtraTools(ctx, ec); err != nil {
		if errors.Is(err, gate.ErrTaskCancelled) || errors.Is(err, context.Canceled) {
			o.finishCancelled(ctx, t, pat.Name(), start)
			return
		}
		o.finishFailed(ctx, t, pat.Name(), start, err)
		return
	}

	result, err := pat.Run(ctx, ec)
	switch {
	case err == nil:
		// A cancellation that landed mid-turn must still win over success.
		if cerr := o.checkCancelled(ctx, t.TaskID); errors.Is(cerr, gate.ErrTaskCancelled) {
			o.finishCancelled(ctx, t, pat.Name(), start)
			return
		}
		o.finishCompleted(ctx, t, pat.Name(), start, result)
	case errors.Is(err, gate.ErrTaskCancelled) || errors.Is(err, context.Canceled):
		o.finishCancelled(ctx, t, pat.Name(), start)
	default:
		o.finishFailed(ctx, t, pat.Name(), start, err)
	}
}

func (o *Orchestrator) finishCompleted(ctx context.Context, t store.Task, pattern string, start time.Time, result string) {
	if err := o.Store.SetTaskStatus(ctx, t.TaskID, models.TaskCompleted, &result, nil); err != nil {
		o.Log.Error("persist completion", "task_id", t.TaskID, "error", err)
	}
	o.recordInteraction(ctx, t.TaskID, t.AgentID, models.InteractionResult, result, nil)
	o.setAgentStatuses(ctx, t, models.AgentIdle)
	o.appendLog(ctx, t.TaskID, t.AgentID, "task_execute", t.Title, result, models.LogSuccess, nil, time.Since(start))
	o.Pub.PublishTask(t.TaskID, "task_completed", map[string]any{"task_id": t.TaskID, "result": result})
	o.notifyOutcome(t, "completed")
	otel.RecordTaskOutcome(ctx, pattern, models.TaskCompleted, time.Since(start))
	o.Log.Info("task completed", "task_id", t.TaskID, "pattern", pattern, "duration", time.Since(start))
}

func (o *Orchestrator) finishFailed(ctx context.Context, t store.Task, pattern string, start time.Time, cause error) {
	msg := cause.Error()
	if err := o.Store.SetTaskStatus(ctx, t.TaskID, models.TaskFailed, nil, &msg); err != nil {
		o.Log.Error("persist failure", "task_id", t.TaskID, "error", err)
	}
	o.recordInteraction(ctx, t.TaskID, t.AgentID, models.InteractionError, msg, nil)
	o.setAgentStatuses(ctx, t, models.AgentIdle)
	o.appendLog(ctx, t.TaskID, t.AgentID, "task_execute", t.Title, "", models.LogFailed, &msg, time.Since(start))
	o.Pub.PublishTask(t.TaskID, "task_failed", map[string]any{"task_id": t.TaskID, "error": msg})
	o.notifyOutcome(t, "failed")
	otel.RecordTaskOutcome(ctx, pattern, models.TaskFailed, time.Since(start))
	o.Log.Error("task failed", "task_id", t.TaskID, "pattern", pattern, "error", msg)
}

// notifyOutcome announces a terminal outcome to the configured capabilities.
// Delivery is best-effort and must not block task bookkeeping.
func (o *Orchestrator) notifyOutcome(t store.Task, outcome string) {
	if o.Caps == nil {
		return
	}
	msg := fmt.Sprintf("Task %s (%s) %s", t.TaskID, t.Title, outcome)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.Caps.NotifyAll(ctx, msg); err != nil {
			o.Log.Warn("outcome notification", "task_id", t.TaskID, "error", err)
		}
	}()
}

func (o *Orchestrator) finishCancelled(ctx context.Context, t store.Task, pattern string, start time.Time) {
	// Cancel already persisted the cancelled status; only the trail and the
	// agents need cleanup here.
	o.recordInteraction(ctx, t.TaskID, t.AgentID, models.InteractionInfo, "Task cancelled", nil)
	o.setAgentStatuses(ctx, t, models.AgentIdle)
	o.appendLog(ctx, t.TaskID, t.AgentID, "task_execute", t.Title, "", models.LogFailed, ptr("cancelled"), time.Since(start))
	o.Pub.PublishTask(t.TaskID, "task_failed", map[string]any{"task_id": t.TaskID, "error": "task cancelled"})
	otel.RecordTaskOutcome(ctx, pattern, models.TaskCancelled, time.Since(start))
	o.Log.Info("task cancelled", "task_id", t.TaskID, "pattern", pattern)
}

// resolveExtraTools clears task-level tool additions through the approval
// gate. Tools the primary agent already holds need no approval. A rejection
// or timeout does not fail the task: the execution proceeds without the
// extra tools and says so in the trail.
func (o *Orchestrator) resolveExtraTools(ctx context.Context, ec *execContext) error {
	if len(ec.task.ToolNames) == 0 {
		return nil
	}
	primary := ""
	granted := map[string]bool{}
	switch {
	case ec.task.AgentID != nil:
		a, err := o.Store.GetAgent(ctx, *ec.task.AgentID)
		if err != nil {
			return err
		}
		primary = a.AgentID
		for _, n := range a.ToolNames {
			granted[n] = true
		}
	case ec.task.TeamLeaderID != nil:
		primary = *ec.task.TeamLeaderID
	}
	var extras []string
	for _, n := range ec.task.ToolNames {
		if !granted[n] {
			extras = append(extras, n)
		}
	}
	if len(extras) == 0 {
		return nil
	}

	req, err := o.Approval.Request(ctx, ec.task.TaskID, primary, extras,
		fmt.Sprintf("task %q requests tools beyond the agent's granted set", ec.task.Title))
	if err != nil {
		return err
	}
	approved, err := o.Approval.Wait(ctx, req.ApprovalID, ec.task.TaskID)
	if err != nil {
		return err
	}
	if !approved {
		o.recordInteraction(ctx, ec.task.TaskID, ec.task.AgentID, models.InteractionInfo,
			fmt.Sprintf("Tool request %v was not approved; continuing without these tools.", extras), nil)
		return nil
	}
	ec.extraTools = extras
	return nil
}

// checkCancelled is the cooperative cancellation checkpoint.
func (o *Orchestrator) checkCancelled(ctx context.Context, taskID string) error {
	status, err := o.Store.TaskStatus(ctx, taskID)
	if err != nil {
		return err
	}
	if status == models.TaskCancelled {
		return gate.ErrTaskCancelled
	}
	return nil
}

// interactionSink converts runtime events into interaction log entries,
// execution log audit records, and live notifications. Sink failures are
// logged, never allowed to fail the task.
func (o *Orchestrator) interactionSink(taskID string) func(runtime.Event) {
	type pendingCall struct {
		name  string
		args  string
		start time.Time
	}
	var mu sync.Mutex
	calls := map[string]pendingCall{}
	turnStart := map[string]time.Time{}

	return func(ev runtime.Event) {
		ctx := context.Background()
		var aid *string
		if ev.Agent != "" {
			aid = &ev.Agent
		}
		switch ev.Type {
		case runtime.EventTurnStarted:
			mu.Lock()
			turnStart[ev.Agent] = ev.Timestamp
			mu.Unlock()
		case runtime.EventTurnEnded:
			mu.Lock()
			started, ok := turnStart[ev.Agent]
			delete(turnStart, ev.Agent)
			mu.Unlock()
			if ok {
				otel.RecordAgentTurn(ctx, ev.Agent, ev.Timestamp.Sub(started))
			}
		case runtime.EventAssistant:
			content, _ := ev.Data["content"].(string)
			if content == "" {
				return
			}
			o.recordInteraction(ctx, taskID, aid, models.InteractionAgentThinking, content, nil)
		case runtime.EventToolCall:
			name, _ := ev.Data["name"].(string)
			args, _ := ev.Data["arguments"].(string)
			id, _ := ev.Data["id"].(string)
			mu.Lock()
			calls[id] = pendingCall{name: name, args: args, start: ev.Timestamp}
			mu.Unlock()
			o.recordInteraction(ctx, taskID, aid, models.InteractionToolCall, name,
				map[string]any{"name": name, "arguments": args})
		case runtime.EventToolResult:
			name, _ := ev.Data["name"].(string)
			output, _ := ev.Data["output"].(string)
			id, _ := ev.Data["id"].(string)
			errMsg, hadErr := ev.Data["error"].(string)
			mu.Lock()
			call, ok := calls[id]
			delete(calls, id)
			mu.Unlock()

			o.recordInteraction(ctx, taskID, aid, models.InteractionToolResult, output,
				map[string]any{"name": name})
			status := models.LogSuccess
			var logErr *string
			if hadErr {
				status = models.LogFailed
				logErr = &errMsg
			}
			var dur time.Duration
			input := ""
			if ok {
				dur = ev.Timestamp.Sub(call.start)
				input = call.args
			}
			e := store.ExecutionLogEntry{
				TaskID:       taskID,
				AgentID:      aid,
				ToolName:     &name,
				Action:       "tool_invocation",
				Input:        input,
				Output:       output,
				Status:       status,
				ErrorMessage: logErr,
				DurationMs:   dur.Milliseconds(),
			}
			if _, err := o.Store.AppendExecutionLog(ctx, e); err != nil {
				o.Log.Warn("append execution log", "task_id", taskID, "error", err)
			}
		}
	}
}

func (o *Orchestrator) recordInteraction(ctx context.Context, taskID string, agentID *string, typ, content string, meta map[string]any) {
	in, err := o.Store.CreateInteraction(ctx, store.Interaction{
		TaskID:          taskID,
		AgentID:         agentID,
		InteractionType: typ,
		Content:         content,
		Metadata:        meta,
	})
	if err != nil {
		o.Log.Warn("record interaction", "task_id", taskID, "type", typ, "error", err)
		return
	}
	o.Pub.PublishTask(taskID, "interaction", map[string]any{
		"interaction_id":   in.InteractionID,
		"interaction_type": typ,
		"content":          content,
	})
}

func (o *Orchestrator) appendLog(ctx context.Context, taskID string, agentID *string, action, input, output, status string, errMsg *string, dur time.Duration) {
	_, err := o.Store.AppendExecutionLog(ctx, store.ExecutionLogEntry{
		TaskID:       taskID,
		AgentID:      agentID,
		Action:       action,
		Input:        input,
		Output:       output,
		Status:       status,
		ErrorMessage: errMsg,
		DurationMs:   dur.Milliseconds(),
	})
	if err != nil {
		o.Log.Warn("append execution log", "task_id", taskID, "action", action, "error", err)
	}
}

// setAgentStatuses flips every agent involved in the task. Supervisor
// workers are handled inside the supervisor pattern around their own turns.
func (o *Orchestrator) setAgentStatuses(ctx context.Context, t store.Task, status string) {
	ids := make([]string, 0, 1+len(t.TeamMemberIDs))
	if t.AgentID != nil {
		ids = append(ids, *t.AgentID)
	}
	if t.TeamLeaderID != nil {
		ids = append(ids, *t.TeamLeaderID)
		ids = append(ids, t.TeamMemberIDs...)
	}
	for _, id := range ids {
		if err := o.Store.SetAgentStatus(ctx, id, status); err != nil {
			o.Log.Warn("set agent status", "agent_id", id, "status", status, "error", err)
		}
	}
}

func ptr[T any](v T) *T { return &v }
