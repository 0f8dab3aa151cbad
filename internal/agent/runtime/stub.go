package runtime

import (
	"context"
	"time"
)

// StubRuntime is a deterministic local runtime that emits plausible events
// without calling any external LLM. When Respond is set it scripts the
// output per turn; otherwise a fixed canned result is returned.
type StubRuntime struct {
	Respond func(req TurnRequest) (TurnResult, error)
}

func (StubRuntime) Name() string { return "stub" }

func (s StubRuntime) RunTurn(ctx context.Context, req TurnRequest, emit func(Event)) (TurnResult, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	emit(Event{
		Type:      EventTurnStarted,
		Agent:     req.Agent,
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC(),
	})

	if s.Respond != nil {
		res, err := s.Respond(req)
		emit(Event{
			Type:      EventAssistant,
			Agent:     req.Agent,
			TaskID:    req.TaskID,
			Timestamp: time.Now().UTC(),
			Data:      map[string]any{"content": res.Output},
		})
		emit(Event{
			Type:      EventTurnEnded,
			Agent:     req.Agent,
			TaskID:    req.TaskID,
			Timestamp: time.Now().UTC(),
		})
		return res, err
	}

	sleep(ctx, 10*time.Millisecond)
	emit(Event{
		Type:      EventAssistant,
		Agent:     req.Agent,
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"content": "stub: ok"},
	})
	emit(Event{
		Type:      EventTurnEnded,
		Agent:     req.Agent,
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC(),
	})
	return TurnResult{Output: "stub: ok"}, nil
}
