package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skoibuchi/ai-agent-team-management/internal/gate"
	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
)

// fakeModel returns scripted responses in order, then repeats the last one.
type fakeModel struct {
	responses []llm.Response
	calls     int
	lastMsgs  []llm.Message
}

func (f *fakeModel) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.Response, error) {
	f.lastMsgs = messages
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	return f.responses[i], nil
}

type fakeInvoker struct {
	outputs map[string]string
	err     error
	calls   []llm.ToolCall
}

func (f *fakeInvoker) Invoke(ctx context.Context, call llm.ToolCall) (string, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return "", f.err
	}
	return f.outputs[call.Name], nil
}

func TestLLMRuntime_plainAnswer(t *testing.T) {
	t.Parallel()
	model := &fakeModel{responses: []llm.Response{{Content: "done"}}}
	r := NewLLMRuntime(model, nil)

	var types []string
	res, err := r.RunTurn(context.Background(), TurnRequest{
		Agent: "a1", TaskID: "t1", System: "sys", Input: "do it",
	}, func(ev Event) { types = append(types, ev.Type) })
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Output != "done" {
		t.Errorf("Output: got %q", res.Output)
	}
	if model.lastMsgs[0].Role != "system" || model.lastMsgs[1].Role != "user" {
		t.Errorf("message roles: %v", model.lastMsgs)
	}
	want := []string{EventTurnStarted, EventAssistant, EventTurnEnded}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("events: got %v, want %v", types, want)
	}
}

func TestLLMRuntime_toolLoop(t *testing.T) {
	t.Parallel()
	model := &fakeModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "read_file", Arguments: `{"path":"a"}`}}},
		{Content: "file says hi"},
	}}
	inv := &fakeInvoker{outputs: map[string]string{"read_file": "hi"}}
	r := NewLLMRuntime(model, inv)

	var types []string
	res, err := r.RunTurn(context.Background(), TurnRequest{Agent: "a1", Input: "read"}, func(ev Event) {
		types = append(types, ev.Type)
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Output != "file says hi" {
		t.Errorf("Output: got %q", res.Output)
	}
	if len(inv.calls) != 1 || inv.calls[0].Name != "read_file" {
		t.Errorf("invoker calls: %+v", inv.calls)
	}
	joined := strings.Join(types, ",")
	for _, want := range []string{EventToolCall, EventToolResult} {
		if !strings.Contains(joined, want) {
			t.Errorf("events missing %s: %v", want, types)
		}
	}
	// Transcript must thread the tool result back as a tool-role message.
	foundTool := false
	for _, m := range res.Messages {
		if m.Role == "tool" && m.ToolCallID == "c1" && m.Content == "hi" {
			foundTool = true
		}
	}
	if !foundTool {
		t.Errorf("transcript missing tool result: %+v", res.Messages)
	}
}

func TestLLMRuntime_toolErrorFedBack(t *testing.T) {
	t.Parallel()
	model := &fakeModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "boom", Arguments: "{}"}}},
		{Content: "recovered"},
	}}
	inv := &fakeInvoker{err: errors.New("no such tool")}
	r := NewLLMRuntime(model, inv)

	res, err := r.RunTurn(context.Background(), TurnRequest{}, nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Output != "recovered" {
		t.Errorf("Output: got %q", res.Output)
	}
	foundErr := false
	for _, m := range res.Messages {
		if m.Role == "tool" && strings.Contains(m.Content, "no such tool") {
			foundErr = true
		}
	}
	if !foundErr {
		t.Errorf("tool error not threaded back: %+v", res.Messages)
	}
}

func TestLLMRuntime_iterationCap(t *testing.T) {
	t.Parallel()
	// Model that always wants another tool call never terminates on its own.
	model := &fakeModel{responses: []llm.Response{
		{Content: "still working", ToolCalls: []llm.ToolCall{{ID: "c", Name: "noop", Arguments: "{}"}}},
	}}
	inv := &fakeInvoker{outputs: map[string]string{"noop": "ok"}}
	r := NewLLMRuntime(model, inv)

	res, err := r.RunTurn(context.Background(), TurnRequest{}, nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if model.calls != maxToolIterations {
		t.Errorf("model calls: got %d, want %d", model.calls, maxToolIterations)
	}
	if res.Output != "still working" {
		t.Errorf("Output after cap: got %q", res.Output)
	}
}

func TestLLMRuntime_noInvoker(t *testing.T) {
	t.Parallel()
	model := &fakeModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "read_file", Arguments: "{}"}}},
	}}
	r := NewLLMRuntime(model, nil)
	if _, err := r.RunTurn(context.Background(), TurnRequest{}, nil); err == nil {
		t.Fatal("expected error when model requests tools without an invoker")
	}
}

func TestLLMRuntime_cancelDuringTool(t *testing.T) {
	t.Parallel()
	model := &fakeModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "q1", Name: "ask_user", Arguments: `{"question":"which one?"}`}}},
		{Content: "answer the model must never get to give"},
	}}
	inv := &fakeInvoker{err: gate.ErrTaskCancelled}
	r := NewLLMRuntime(model, inv)

	var types []string
	_, err := r.RunTurn(context.Background(), TurnRequest{Agent: "a1", TaskID: "t1"}, func(ev Event) {
		types = append(types, ev.Type)
	})
	if !errors.Is(err, gate.ErrTaskCancelled) {
		t.Fatalf("expected gate.ErrTaskCancelled, got %v", err)
	}
	// The turn ends at the cancelled tool call: no second model turn, no
	// tool result threaded back as if it were ordinary tool output.
	if model.calls != 1 {
		t.Errorf("model calls after cancellation: got %d, want 1", model.calls)
	}
	for _, typ := range types {
		if typ == EventToolResult {
			t.Errorf("tool result emitted after cancellation: %v", types)
		}
	}
}

func TestLLMRuntime_cancelledContextFromTool(t *testing.T) {
	t.Parallel()
	model := &fakeModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "slow", Arguments: "{}"}}},
		{Content: "unreachable"},
	}}
	inv := &fakeInvoker{err: context.Canceled}
	r := NewLLMRuntime(model, inv)

	_, err := r.RunTurn(context.Background(), TurnRequest{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if model.calls != 1 {
		t.Errorf("model calls: got %d, want 1", model.calls)
	}
}

func TestLLMRuntime_cancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &fakeModel{responses: []llm.Response{{Content: "x"}}}
	r := NewLLMRuntime(model, nil)
	if _, err := r.RunTurn(ctx, TurnRequest{}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
