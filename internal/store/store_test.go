package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatal(err)
	}
	st, err := Open(home)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func mustAgent(t *testing.T, st Store, name string) Agent {
	t.Helper()
	a, err := st.CreateAgent(context.Background(), Agent{Name: name, LLMProvider: "openai", LLMModel: "gpt-4o"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return a
}

func ptr(s string) *string { return &s }

func TestMigrationsAndBasicCRUD(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	a, err := st.CreateAgent(ctx, Agent{Name: "researcher", Role: "research assistant", LLMProvider: "openai", LLMModel: "gpt-4o", ToolNames: []string{"web_fetch"}})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if a.AgentID == "" || a.Status != "idle" || a.AgentType != "worker" {
		t.Fatalf("CreateAgent defaults: got %+v", a)
	}

	got, err := st.GetAgent(ctx, a.AgentID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Name != "researcher" || len(got.ToolNames) != 1 || got.ToolNames[0] != "web_fetch" {
		t.Fatalf("GetAgent: got %+v", got)
	}

	task, err := st.CreateTask(ctx, Task{Title: "summarize docs", Description: "read and summarize", AgentID: &a.AgentID})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != "pending" || task.Priority != "medium" {
		t.Fatalf("CreateTask defaults: got %+v", task)
	}

	status, err := st.TaskStatus(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("TaskStatus: %v", err)
	}
	if status != "pending" {
		t.Fatalf("TaskStatus: got %q", status)
	}

	if err := st.SetTaskStatus(ctx, task.TaskID, "running", nil, nil); err != nil {
		t.Fatalf("SetTaskStatus running: %v", err)
	}
	task, _ = st.GetTask(ctx, task.TaskID)
	if task.Status != "running" || task.StartedAt == nil {
		t.Fatalf("expected running with started_at, got %+v", task)
	}

	if err := st.SetTaskStatus(ctx, task.TaskID, "completed", ptr("done"), nil); err != nil {
		t.Fatalf("SetTaskStatus completed: %v", err)
	}
	task, _ = st.GetTask(ctx, task.TaskID)
	if task.Result == nil || *task.Result != "done" || task.CompletedAt == nil {
		t.Fatalf("expected result and completed_at, got %+v", task)
	}
}

func TestTeamsCRUD(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	leader := mustAgent(t, st, "leader")
	m1 := mustAgent(t, st, "m1")
	m2 := mustAgent(t, st, "m2")

	tm, err := st.CreateTeam(ctx, Team{Name: "research", LeaderAgentID: leader.AgentID, MemberIDs: []string{m1.AgentID, m2.AgentID}, IsActive: true})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	got, err := st.GetTeam(ctx, tm.TeamID)
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if !got.IsActive || len(got.MemberIDs) != 2 || got.MemberIDs[0] != m1.AgentID {
		t.Fatalf("GetTeam: got %+v", got)
	}

	got.IsActive = false
	if err := st.UpdateTeam(ctx, got); err != nil {
		t.Fatalf("UpdateTeam: %v", err)
	}
	got, _ = st.GetTeam(ctx, tm.TeamID)
	if got.IsActive {
		t.Fatal("expected team inactive after update")
	}

	if err := st.DeleteTeam(ctx, tm.TeamID); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	if _, err := st.GetTeam(ctx, tm.TeamID); err == nil {
		t.Fatal("expected error for deleted team")
	}
}

func TestInteractionsOrderingAndSince(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	task, _ := st.CreateTask(ctx, Task{Title: "t"})
	var ids []string
	for i := 0; i < 5; i++ {
		in, err := st.CreateInteraction(ctx, Interaction{TaskID: task.TaskID, InteractionType: "agent_thinking", Content: fmt.Sprintf("step %d", i)})
		if err != nil {
			t.Fatalf("CreateInteraction: %v", err)
		}
		ids = append(ids, in.InteractionID)
	}

	all, err := st.ListInteractions(ctx, task.TaskID, InteractionQuery{})
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 interactions, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Seq <= all[i-1].Seq {
			t.Fatalf("interactions out of order at %d: %+v", i, all)
		}
	}

	since, err := st.ListInteractions(ctx, task.TaskID, InteractionQuery{SinceID: ids[2]})
	if err != nil {
		t.Fatalf("ListInteractions since: %v", err)
	}
	if len(since) != 2 || since[0].InteractionID != ids[3] {
		t.Fatalf("since query: got %+v", since)
	}

	typed, _ := st.ListInteractions(ctx, task.TaskID, InteractionQuery{Type: "question"})
	if len(typed) != 0 {
		t.Fatalf("type filter: got %d", len(typed))
	}
}

func TestRespondInteraction(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	task, _ := st.CreateTask(ctx, Task{Title: "t"})
	q, err := st.CreateInteraction(ctx, Interaction{TaskID: task.TaskID, InteractionType: "question", Content: "which format?", RequiresResponse: true})
	if err != nil {
		t.Fatalf("CreateInteraction: %v", err)
	}

	pending, err := st.HasPendingInteraction(ctx, task.TaskID)
	if err != nil || !pending {
		t.Fatalf("HasPendingInteraction: %v pending=%v", err, pending)
	}

	answered, err := st.RespondInteraction(ctx, q.InteractionID, "markdown")
	if err != nil {
		t.Fatalf("RespondInteraction: %v", err)
	}
	if answered.Response == nil || *answered.Response != "markdown" || answered.RespondedAt == nil {
		t.Fatalf("RespondInteraction: got %+v", answered)
	}

	// Response is immutable after the first answer.
	if _, err := st.RespondInteraction(ctx, q.InteractionID, "json"); err == nil {
		t.Fatal("expected error answering twice")
	}
	got, _ := st.GetInteraction(ctx, q.InteractionID)
	if *got.Response != "markdown" {
		t.Fatalf("response overwritten: %+v", got)
	}

	pending, _ = st.HasPendingInteraction(ctx, task.TaskID)
	if pending {
		t.Fatal("expected no pending interaction after answer")
	}

	info, _ := st.CreateInteraction(ctx, Interaction{TaskID: task.TaskID, InteractionType: "info", Content: "fyi"})
	if _, err := st.RespondInteraction(ctx, info.InteractionID, "x"); err == nil {
		t.Fatal("expected error responding to non-question")
	}
}

func TestApprovals(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	a := mustAgent(t, st, "a1")
	task, _ := st.CreateTask(ctx, Task{Title: "t"})

	ap, err := st.CreateApproval(ctx, ApprovalRequest{AgentID: a.AgentID, TaskID: &task.TaskID, ToolNames: []string{"write_file"}, Reason: "needs to save output"})
	if err != nil {
		t.Fatalf("CreateApproval: %v", err)
	}
	if ap.Status != "pending" {
		t.Fatalf("CreateApproval status: %q", ap.Status)
	}

	has, _ := st.HasPendingApproval(ctx, task.TaskID)
	if !has {
		t.Fatal("HasPendingApproval: expected true")
	}

	pending, _ := st.ListPendingApprovals(ctx, a.AgentID)
	if len(pending) != 1 {
		t.Fatalf("ListPendingApprovals: got %d", len(pending))
	}
	pending, _ = st.ListPendingApprovals(ctx, "other-agent")
	if len(pending) != 0 {
		t.Fatalf("ListPendingApprovals filter: got %d", len(pending))
	}

	changed, err := st.ResolveApproval(ctx, ap.ApprovalID, "approved", ptr("ok"))
	if err != nil || !changed {
		t.Fatalf("ResolveApproval: changed=%v err=%v", changed, err)
	}
	// Second resolution is a no-op.
	changed, err = st.ResolveApproval(ctx, ap.ApprovalID, "rejected", nil)
	if err != nil || changed {
		t.Fatalf("ResolveApproval twice: changed=%v err=%v", changed, err)
	}
	got, _ := st.GetApproval(ctx, ap.ApprovalID)
	if got.Status != "approved" || got.ResponseNote == nil || *got.ResponseNote != "ok" {
		t.Fatalf("approval after double resolve: %+v", got)
	}

	has, _ = st.HasPendingApproval(ctx, task.TaskID)
	if has {
		t.Fatal("HasPendingApproval after resolve: expected false")
	}

	if _, err := st.ResolveApproval(ctx, "missing", "approved", nil); err == nil {
		t.Fatal("expected error for unknown approval")
	}
	if _, err := st.ResolveApproval(ctx, ap.ApprovalID, "bogus", nil); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestExecutionLog(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	task, _ := st.CreateTask(ctx, Task{Title: "t"})
	_, err := st.AppendExecutionLog(ctx, ExecutionLogEntry{TaskID: task.TaskID, Action: "execute_task", Status: "started"})
	if err != nil {
		t.Fatalf("AppendExecutionLog: %v", err)
	}
	_, _ = st.AppendExecutionLog(ctx, ExecutionLogEntry{TaskID: task.TaskID, Action: "execute_task", Status: "success", DurationMs: 1200})

	logs, err := st.ListExecutionLog(ctx, task.TaskID, 0)
	if err != nil {
		t.Fatalf("ListExecutionLog: %v", err)
	}
	if len(logs) != 2 || logs[0].Status != "started" || logs[1].DurationMs != 1200 {
		t.Fatalf("ListExecutionLog: got %+v", logs)
	}
}

func TestDeleteTask_cascadesAndGuards(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	task, _ := st.CreateTask(ctx, Task{Title: "t"})
	_, _ = st.CreateInteraction(ctx, Interaction{TaskID: task.TaskID, InteractionType: "info", Content: "x"})
	_, _ = st.AppendExecutionLog(ctx, ExecutionLogEntry{TaskID: task.TaskID, Action: "a"})

	if err := st.SetTaskStatus(ctx, task.TaskID, "running", nil, nil); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if err := st.DeleteTask(ctx, task.TaskID); err == nil {
		t.Fatal("expected error deleting running task")
	}

	_ = st.SetTaskStatus(ctx, task.TaskID, "cancelled", nil, nil)
	if err := st.DeleteTask(ctx, task.TaskID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	ins, _ := st.ListInteractions(ctx, task.TaskID, InteractionQuery{})
	if len(ins) != 0 {
		t.Fatalf("expected cascaded interaction delete, got %d", len(ins))
	}
	logs, _ := st.ListExecutionLog(ctx, task.TaskID, 0)
	if len(logs) != 0 {
		t.Fatalf("expected cascaded log delete, got %d", len(logs))
	}
}

func TestStoreErrorPaths(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateAgent(ctx, Agent{}); err == nil {
		t.Fatal("CreateAgent empty name: expected error")
	}
	if _, err := st.CreateTask(ctx, Task{}); err == nil {
		t.Fatal("CreateTask empty title: expected error")
	}
	if _, err := st.CreateTeam(ctx, Team{Name: "x"}); err == nil {
		t.Fatal("CreateTeam without leader: expected error")
	}
	if _, err := st.GetTask(ctx, "nope"); err == nil {
		t.Fatal("GetTask nonexistent: expected error")
	}
	if _, err := st.GetAgent(ctx, "nope"); err == nil {
		t.Fatal("GetAgent nonexistent: expected error")
	}
	if _, err := st.TaskStatus(ctx, "nope"); err == nil {
		t.Fatal("TaskStatus nonexistent: expected error")
	}
	if err := st.SetAgentStatus(ctx, "nope", "running"); err == nil {
		t.Fatal("SetAgentStatus nonexistent: expected error")
	}
}

func TestOpenWithOptions(t *testing.T) {
	t.Parallel()
	_, err := OpenWithOptions(OpenOptions{Driver: "postgres"})
	if err == nil {
		t.Fatal("OpenWithOptions postgres: expected error")
	}
	dir := t.TempDir()
	st, err := OpenWithOptions(OpenOptions{Driver: "sqlite", Home: dir})
	if err != nil {
		t.Fatalf("OpenWithOptions sqlite: %v", err)
	}
	_ = st.Close()
	st2, err := OpenWithOptions(OpenOptions{Driver: "sqlite", Home: "", DSN: "file:" + filepath.Join(dir, "protected", "db.sqlite")})
	if err != nil {
		t.Fatalf("OpenWithOptions DSN: %v", err)
	}
	_ = st2.Close()
}

func TestConcurrentCreateInteraction(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	task, _ := st.CreateTask(ctx, Task{Title: "t"})

	const n = 20
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(j int) {
			_, err := st.CreateInteraction(ctx, Interaction{TaskID: task.TaskID, InteractionType: "agent_thinking", Content: fmt.Sprintf("c %d", j)})
			done <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent CreateInteraction: %v", err)
		}
	}
	ins, _ := st.ListInteractions(ctx, task.TaskID, InteractionQuery{})
	if len(ins) != n {
		t.Fatalf("expected %d interactions, got %d", n, len(ins))
	}
}

func BenchmarkCreateInteraction(b *testing.B) {
	home := filepath.Join(b.TempDir(), "home")
	st, err := Open(home)
	if err != nil {
		b.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	ctx := context.Background()
	task, _ := st.CreateTask(ctx, Task{Title: "bench"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = st.CreateInteraction(ctx, Interaction{TaskID: task.TaskID, InteractionType: "agent_thinking", Content: "c"})
	}
}

func BenchmarkTaskStatus(b *testing.B) {
	home := filepath.Join(b.TempDir(), "home")
	st, err := Open(home)
	if err != nil {
		b.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	ctx := context.Background()
	task, _ := st.CreateTask(ctx, Task{Title: "bench"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = st.TaskStatus(ctx, task.TaskID)
	}
}
