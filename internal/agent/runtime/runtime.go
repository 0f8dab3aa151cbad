// Package runtime executes a single agent turn: one prompt in, one final
// answer out, with any tool round-trips in between. Implementations emit
// events as they go so callers can persist and stream progress.
package runtime

import (
	"context"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
)

// Event types emitted during a turn.
const (
	EventTurnStarted = "turn_started"
	EventAssistant   = "assistant"
	EventToolCall    = "tool_call"
	EventToolResult  = "tool_result"
	EventTurnEnded   = "turn_ended"
)

type Event struct {
	Type      string         `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// TurnRequest describes one agent turn. History carries prior conversation
// state when the caller is threading a multi-turn exchange.
type TurnRequest struct {
	Agent   string
	TaskID  string
	System  string
	Input   string
	History []llm.Message
	Tools   []llm.ToolSpec
}

// TurnResult is the final outcome of a turn. Messages is the full transcript
// including tool round-trips, suitable for reuse as History in a later turn.
type TurnResult struct {
	Output   string
	Messages []llm.Message
}

type Runtime interface {
	Name() string
	RunTurn(ctx context.Context, req TurnRequest, emit func(Event)) (TurnResult, error)
}

// ToolInvoker dispatches a model-requested tool call and returns its output.
type ToolInvoker interface {
	Invoke(ctx context.Context, call llm.ToolCall) (string, error)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
