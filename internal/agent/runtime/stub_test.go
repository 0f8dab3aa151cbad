package runtime

import (
	"context"
	"errors"
	"testing"
)

func TestStubRuntime_Name(t *testing.T) {
	t.Parallel()
	var r StubRuntime
	if got := r.Name(); got != "stub" {
		t.Errorf("Name(): got %q, want stub", got)
	}
}

func TestStubRuntime_RunTurn(t *testing.T) {
	t.Parallel()
	var r StubRuntime
	events := 0
	emit := func(ev Event) {
		events++
		if ev.Agent != "a1" || ev.TaskID != "t1" {
			t.Errorf("event Agent/TaskID: got %q/%q", ev.Agent, ev.TaskID)
		}
	}
	req := TurnRequest{Agent: "a1", TaskID: "t1", Input: "hello"}
	result, err := r.RunTurn(context.Background(), req, emit)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if result.Output != "stub: ok" {
		t.Errorf("RunTurn Output: got %q", result.Output)
	}
	if events < 3 {
		t.Errorf("expected at least 3 events, got %d", events)
	}
}

func TestStubRuntime_Respond(t *testing.T) {
	t.Parallel()
	calls := 0
	r := StubRuntime{Respond: func(req TurnRequest) (TurnResult, error) {
		calls++
		if calls == 1 {
			return TurnResult{Output: "first: " + req.Input}, nil
		}
		return TurnResult{}, errors.New("scripted failure")
	}}
	res, err := r.RunTurn(context.Background(), TurnRequest{Input: "x"}, nil)
	if err != nil || res.Output != "first: x" {
		t.Fatalf("first turn: %q, %v", res.Output, err)
	}
	if _, err := r.RunTurn(context.Background(), TurnRequest{Input: "y"}, nil); err == nil {
		t.Fatal("second turn: expected scripted failure")
	}
}
