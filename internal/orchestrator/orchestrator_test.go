package orchestrator

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/agent/runtime"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/internal/tools"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// scriptedFactory routes every agent turn through one script function.
func scriptedFactory(script func(agent store.Agent, req runtime.TurnRequest) (string, error)) RuntimeFactory {
	return func(agent store.Agent, invoker runtime.ToolInvoker) (runtime.Runtime, error) {
		return runtime.StubRuntime{Respond: func(req runtime.TurnRequest) (runtime.TurnResult, error) {
			out, err := script(agent, req)
			return runtime.TurnResult{Output: out}, err
		}}, nil
	}
}

func newTestOrchestrator(t *testing.T, factory RuntimeFactory) (*Orchestrator, store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	reg := tools.NewRegistry()
	tools.RegisterFileTools(reg, t.TempDir())
	o := New(Options{Store: st, Tools: reg, Runtime: factory})
	o.Human.PollInterval = 10 * time.Millisecond
	o.Approval.PollInterval = 10 * time.Millisecond
	return o, st
}

func mustAgent(t *testing.T, st store.Store, a store.Agent) store.Agent {
	t.Helper()
	if a.AgentType == "" {
		a.AgentType = models.AgentTypeWorker
	}
	created, err := st.CreateAgent(context.Background(), a)
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return created
}

func TestSubmit_validation(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t, scriptedFactory(func(store.Agent, runtime.TurnRequest) (string, error) {
		return "ok", nil
	}))
	ctx := context.Background()

	if _, err := o.Submit(ctx, store.Task{Title: "  "}); err == nil {
		t.Error("expected rejection for empty title")
	}
	if _, err := o.Submit(ctx, store.Task{Title: "t"}); err == nil {
		t.Error("expected rejection with no agents in the system")
	}

	agent := mustAgent(t, st, store.Agent{Name: "solo", Role: "generalist"})
	created, err := o.Submit(ctx, store.Task{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if created.AgentID == nil || *created.AgentID != agent.AgentID {
		t.Errorf("auto-assign: got %v, want %s", created.AgentID, agent.AgentID)
	}
	if created.Status != models.TaskPending {
		t.Errorf("status: got %q", created.Status)
	}

	leader := mustAgent(t, st, store.Agent{Name: "lead", Role: "leader"})
	if _, err := o.Submit(ctx, store.Task{Title: "t", TeamLeaderID: &leader.AgentID}); err == nil {
		t.Error("expected rejection for leader without members")
	}
	if _, err := o.Submit(ctx, store.Task{Title: "t", AgentID: &agent.AgentID, TeamLeaderID: &leader.AgentID, TeamMemberIDs: []string{agent.AgentID}}); err == nil {
		t.Error("expected rejection for both agent and team set")
	}
}

func TestExecuteWait_singleAgent(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t, scriptedFactory(func(a store.Agent, req runtime.TurnRequest) (string, error) {
		if !strings.Contains(req.Input, "write a haiku") {
			t.Errorf("task description not in input: %q", req.Input)
		}
		return "autumn moonlight", nil
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "poet", Role: "writes poems"})
	task, err := o.Submit(ctx, store.Task{Title: "haiku", Description: "write a haiku", AgentID: &agent.AgentID})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := o.ExecuteWait(ctx, task.TaskID); err != nil {
		t.Fatalf("ExecuteWait: %v", err)
	}
	done, err := st.GetTask(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if done.Status != models.TaskCompleted || done.Result == nil || *done.Result != "autumn moonlight" {
		t.Fatalf("task after run: status=%q result=%v", done.Status, done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not set")
	}

	a, _ := st.GetAgent(ctx, agent.AgentID)
	if a.Status != models.AgentIdle {
		t.Errorf("agent status: %q", a.Status)
	}
	ins, _ := st.ListInteractions(ctx, task.TaskID, store.InteractionQuery{Type: models.InteractionResult})
	if len(ins) != 1 || ins[0].Content != "autumn moonlight" {
		t.Errorf("result interaction: %+v", ins)
	}
	logs, _ := st.ListExecutionLog(ctx, task.TaskID, 0)
	if len(logs) < 2 {
		t.Errorf("execution log entries: %d", len(logs))
	}
}

func TestExecute_alreadyRunningRejected(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t, scriptedFactory(func(store.Agent, runtime.TurnRequest) (string, error) {
		return "ok", nil
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{Title: "t", Description: "d", AgentID: &agent.AgentID})
	if err := st.SetTaskStatus(ctx, task.TaskID, models.TaskRunning, nil, nil); err != nil {
		t.Fatalf("set running: %v", err)
	}
	if err := o.Execute(ctx, task.TaskID); err == nil {
		t.Fatal("expected already-running rejection")
	}
}

func TestExecute_failurePreservesError(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t, scriptedFactory(func(store.Agent, runtime.TurnRequest) (string, error) {
		return "", context.DeadlineExceeded
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{Title: "t", Description: "d", AgentID: &agent.AgentID})
	if err := o.ExecuteWait(ctx, task.TaskID); err != nil {
		t.Fatalf("ExecuteWait: %v", err)
	}
	done, _ := st.GetTask(ctx, task.TaskID)
	if done.Status != models.TaskFailed || done.ErrorMessage == nil {
		t.Fatalf("task: status=%q err=%v", done.Status, done.ErrorMessage)
	}
	ins, _ := st.ListInteractions(ctx, task.TaskID, store.InteractionQuery{Type: models.InteractionError})
	if len(ins) != 1 {
		t.Errorf("error interactions: %d", len(ins))
	}
	a, _ := st.GetAgent(ctx, agent.AgentID)
	if a.Status != models.AgentIdle {
		t.Errorf("agent status after failure: %q", a.Status)
	}
}

func TestCancel_midExecution(t *testing.T) {
	t.Parallel()
	blocker := make(chan struct{})
	o, st := newTestOrchestrator(t, scriptedFactory(func(store.Agent, runtime.TurnRequest) (string, error) {
		<-blocker
		return "late result", nil
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{Title: "t", Description: "d", AgentID: &agent.AgentID})
	if err := o.Execute(ctx, task.TaskID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Cancel while the turn is in flight, then let the turn finish.
	for i := 0; i < 100; i++ {
		if err := o.Cancel(ctx, task.TaskID); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(blocker)
	o.Wait()

	done, _ := st.GetTask(ctx, task.TaskID)
	if done.Status != models.TaskCancelled {
		t.Fatalf("status after cancel: %q", done.Status)
	}
	if done.Result != nil {
		t.Errorf("cancelled task must not keep a result: %v", *done.Result)
	}
	a, _ := st.GetAgent(ctx, agent.AgentID)
	if a.Status != models.AgentIdle {
		t.Errorf("agent status: %q", a.Status)
	}
	ins, _ := st.ListInteractions(ctx, task.TaskID, store.InteractionQuery{})
	last := ins[len(ins)-1]
	if last.InteractionType != models.InteractionInfo || !strings.Contains(last.Content, "cancelled") {
		t.Errorf("last interaction: %+v", last)
	}
}

func TestCancel_notRunning(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t, scriptedFactory(func(store.Agent, runtime.TurnRequest) (string, error) {
		return "ok", nil
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{Title: "t", Description: "d", AgentID: &agent.AgentID})
	if err := o.Cancel(ctx, task.TaskID); err == nil {
		t.Fatal("expected rejection for cancelling a pending task")
	}
}

func TestResumeWithMessage(t *testing.T) {
	t.Parallel()
	var lastInput atomic.Value
	o, st := newTestOrchestrator(t, scriptedFactory(func(a store.Agent, req runtime.TurnRequest) (string, error) {
		lastInput.Store(req.Input)
		return "v2 result", nil
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{Title: "report", Description: "write the report", AgentID: &agent.AgentID})
	if err := o.ExecuteWait(ctx, task.TaskID); err != nil {
		t.Fatalf("ExecuteWait: %v", err)
	}

	if err := o.ResumeWithMessage(ctx, task.TaskID, "add a summary section"); err != nil {
		t.Fatalf("ResumeWithMessage: %v", err)
	}
	o.Wait()

	done, _ := st.GetTask(ctx, task.TaskID)
	if done.Status != models.TaskCompleted {
		t.Fatalf("status after resume: %q", done.Status)
	}
	if !strings.Contains(done.Description, "Previous outcome") || !strings.Contains(done.Description, "add a summary section") {
		t.Errorf("description not rewritten: %q", done.Description)
	}
	input, _ := lastInput.Load().(string)
	if !strings.Contains(input, "add a summary section") {
		t.Errorf("follow-up not in re-execution input: %q", input)
	}
	msgs, _ := st.ListInteractions(ctx, task.TaskID, store.InteractionQuery{Type: models.InteractionUserMessage})
	if len(msgs) != 1 {
		t.Errorf("user_message interactions: %d", len(msgs))
	}

	// Resuming a running task is rejected.
	if err := st.SetTaskStatus(ctx, task.TaskID, models.TaskRunning, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := o.ResumeWithMessage(ctx, task.TaskID, "again"); err == nil {
		t.Error("expected rejection while running")
	}
}

func TestDetailedStatus(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t, scriptedFactory(func(store.Agent, runtime.TurnRequest) (string, error) {
		return "ok", nil
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{Title: "t", Description: "d", AgentID: &agent.AgentID})

	got, err := o.DetailedStatus(ctx, task)
	if err != nil || got != models.TaskPending {
		t.Fatalf("pending task: %q, %v", got, err)
	}

	if err := st.SetTaskStatus(ctx, task.TaskID, models.TaskRunning, nil, nil); err != nil {
		t.Fatal(err)
	}
	task.Status = models.TaskRunning
	if got, _ := o.DetailedStatus(ctx, task); got != models.TaskRunning {
		t.Errorf("running without gates: %q", got)
	}

	q, err := st.CreateInteraction(ctx, store.Interaction{
		TaskID: task.TaskID, InteractionType: models.InteractionQuestion,
		Content: "which?", RequiresResponse: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := o.DetailedStatus(ctx, task); got != models.DetailedWaitingInput {
		t.Errorf("with pending question: %q", got)
	}
	if _, err := st.RespondInteraction(ctx, q.InteractionID, "this one"); err != nil {
		t.Fatal(err)
	}

	if _, err := st.CreateApproval(ctx, store.ApprovalRequest{
		AgentID: agent.AgentID, TaskID: &task.TaskID,
		ToolNames: []string{"web_fetch"}, Status: models.ApprovalPending,
	}); err != nil {
		t.Fatal(err)
	}
	if got, _ := o.DetailedStatus(ctx, task); got != models.DetailedWaitingApproval {
		t.Errorf("with pending approval: %q", got)
	}
}

func TestExtraTools_timeoutProceedsWithoutTools(t *testing.T) {
	t.Parallel()
	o, st := newTestOrchestrator(t, scriptedFactory(func(a store.Agent, req runtime.TurnRequest) (string, error) {
		for _, spec := range req.Tools {
			if spec.Name == "write_file" {
				return "", context.DeadlineExceeded
			}
		}
		return "done without extras", nil
	}))
	o.Approval.Timeout = 50 * time.Millisecond
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{
		Title: "t", Description: "d", AgentID: &agent.AgentID,
		ToolNames: []string{"write_file"}, AutoMode: true,
	})

	if err := o.ExecuteWait(ctx, task.TaskID); err != nil {
		t.Fatalf("ExecuteWait: %v", err)
	}
	done, _ := st.GetTask(ctx, task.TaskID)
	if done.Status != models.TaskCompleted {
		t.Fatalf("status: %q (err=%v)", done.Status, done.ErrorMessage)
	}
	infos, _ := st.ListInteractions(ctx, task.TaskID, store.InteractionQuery{Type: models.InteractionInfo})
	found := false
	for _, in := range infos {
		if strings.Contains(in.Content, "not approved") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing not-approved notice: %+v", infos)
	}
	ap, _ := st.ListPendingApprovals(ctx, "")
	if len(ap) != 0 {
		t.Errorf("approval left pending: %+v", ap)
	}
}

func TestExtraTools_approvedAreGranted(t *testing.T) {
	t.Parallel()
	sawTool := make(chan bool, 1)
	o, st := newTestOrchestrator(t, scriptedFactory(func(a store.Agent, req runtime.TurnRequest) (string, error) {
		has := false
		for _, spec := range req.Tools {
			if spec.Name == "write_file" {
				has = true
			}
		}
		select {
		case sawTool <- has:
		default:
		}
		return "done", nil
	}))
	ctx := context.Background()
	agent := mustAgent(t, st, store.Agent{Name: "w", Role: "r"})
	task, _ := o.Submit(ctx, store.Task{
		Title: "t", Description: "d", AgentID: &agent.AgentID,
		ToolNames: []string{"write_file"}, AutoMode: true,
	})
	if err := o.Execute(ctx, task.TaskID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Approve the pending request once it appears.
	var approvalID string
	for i := 0; i < 200 && approvalID == ""; i++ {
		pend, err := st.ListPendingApprovals(ctx, "")
		if err != nil {
			t.Fatalf("list approvals: %v", err)
		}
		if len(pend) == 1 {
			approvalID = pend[0].ApprovalID
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if approvalID == "" {
		t.Fatal("approval request never appeared")
	}
	if _, err := o.Approval.Approve(ctx, approvalID, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	o.Wait()

	if has := <-sawTool; !has {
		t.Error("approved extra tool not granted to the agent")
	}
	done, _ := st.GetTask(ctx, task.TaskID)
	if done.Status != models.TaskCompleted {
		t.Fatalf("status: %q", done.Status)
	}
}
