package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/agent/runtime"
	"github.com/skoibuchi/ai-agent-team-management/internal/httpapi"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

func TestStartForeground_emptyHome(t *testing.T) {
	t.Parallel()
	if err := StartForeground(context.Background(), StartOptions{Home: ""}); err == nil {
		t.Fatal("StartForeground with empty home: expected error")
	}
}

func testApp(t *testing.T, result string) *httpapi.App {
	t.Helper()
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: filepath.Join(t.TempDir(), "home")})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() {
		app.Orch.Wait()
		_ = app.Store.Close()
	})
	app.Orch.NewRuntime = func(store.Agent, runtime.ToolInvoker) (runtime.Runtime, error) {
		return runtime.StubRuntime{Respond: func(runtime.TurnRequest) (runtime.TurnResult, error) {
			return runtime.TurnResult{Output: result}, nil
		}}, nil
	}
	return app
}

func TestStatus_noPidFile(t *testing.T) {
	t.Parallel()
	st, err := Status(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Error("empty home reported as running")
	}
}

func TestStatus_stalePidRemoved(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	if err := os.MkdirAll(runDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	// A pid far above pid_max cannot belong to a live process.
	if err := os.WriteFile(pidPath(home), []byte("999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Status(context.Background(), home)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Error("stale pid reported as running")
	}
	if _, err := os.Stat(pidPath(home)); !os.IsNotExist(err) {
		t.Error("stale pid file not cleaned up")
	}
}

func TestStatus_livePid(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	if err := os.MkdirAll(runDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(addrPath(home), []byte("0.0.0.0:8326\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Status(context.Background(), home)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.PID != pid || st.Addr != "0.0.0.0:8326" {
		t.Errorf("Status: %+v", st)
	}
}

func TestCheckPortAvailable(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port
	if err := checkPortAvailable(port); err == nil {
		t.Errorf("port %d held open but reported available", port)
	}
}

func TestRecoverOrphans_reExecutesInterruptedTask(t *testing.T) {
	t.Parallel()
	app := testApp(t, "recovered result")
	ctx := context.Background()

	agent, err := app.Store.CreateAgent(ctx, store.Agent{Name: "w", Role: "r", AgentType: models.AgentTypeWorker})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	task, err := app.Orch.Submit(ctx, store.Task{Title: "t", Description: "d", AgentID: &agent.AgentID})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Simulate a crash: the row says running but no execution holds it.
	if err := app.Store.SetTaskStatus(ctx, task.TaskID, models.TaskRunning, nil, nil); err != nil {
		t.Fatal(err)
	}

	if n := recoverOrphans(ctx, app, 4); n != 1 {
		t.Fatalf("recovered %d tasks, want 1", n)
	}
	app.Orch.Wait()

	done, err := app.Store.GetTask(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if done.Status != models.TaskCompleted || done.Result == nil || *done.Result != "recovered result" {
		t.Fatalf("task after recovery: status=%q result=%v err=%v", done.Status, done.Result, done.ErrorMessage)
	}
	infos, _ := app.Store.ListInteractions(ctx, task.TaskID, store.InteractionQuery{Type: models.InteractionInfo})
	found := false
	for _, in := range infos {
		if in.Metadata["reason"] == "daemon_restart" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing interruption notice: %+v", infos)
	}
}

func TestRecoverOrphans_skipsLiveExecutions(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	app, err := httpapi.NewApp(httpapi.ServerOptions{Home: filepath.Join(t.TempDir(), "home")})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() {
		app.Orch.Wait()
		_ = app.Store.Close()
	})
	app.Orch.NewRuntime = func(store.Agent, runtime.ToolInvoker) (runtime.Runtime, error) {
		return runtime.StubRuntime{Respond: func(runtime.TurnRequest) (runtime.TurnResult, error) {
			<-release
			return runtime.TurnResult{Output: "slow"}, nil
		}}, nil
	}
	ctx := context.Background()

	agent, err := app.Store.CreateAgent(ctx, store.Agent{Name: "w", Role: "r", AgentType: models.AgentTypeWorker})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	task, err := app.Orch.Submit(ctx, store.Task{Title: "t", Description: "d", AgentID: &agent.AgentID})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := app.Orch.Execute(ctx, task.TaskID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// The execution is live in this process; the sweep must leave it alone.
	for i := 0; i < 100 && !app.Orch.IsExecuting(task.TaskID); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if n := recoverOrphans(ctx, app, 4); n != 0 {
		t.Errorf("sweep touched a live execution: %d", n)
	}
	close(release)
	app.Orch.Wait()

	done, _ := app.Store.GetTask(ctx, task.TaskID)
	if done.Status != models.TaskCompleted {
		t.Fatalf("status: %q err=%v", done.Status, done.ErrorMessage)
	}
}
