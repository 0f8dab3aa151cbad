package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skoibuchi/ai-agent-team-management/internal/gate"
	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
)

// maxToolIterations bounds the model/tool loop so a misbehaving model cannot
// spin a turn forever.
const maxToolIterations = 25

// LLMRuntime runs a turn against a chat model, dispatching tool calls through
// the invoker until the model produces a final text answer.
type LLMRuntime struct {
	Model   llm.ChatModel
	Invoker ToolInvoker
}

func NewLLMRuntime(model llm.ChatModel, invoker ToolInvoker) *LLMRuntime {
	return &LLMRuntime{Model: model, Invoker: invoker}
}

func (r *LLMRuntime) Name() string { return "llm" }

func (r *LLMRuntime) RunTurn(ctx context.Context, req TurnRequest, emit func(Event)) (TurnResult, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	emit(Event{
		Type:      EventTurnStarted,
		Agent:     req.Agent,
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC(),
	})

	messages := make([]llm.Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, llm.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.History...)
	if req.Input != "" {
		messages = append(messages, llm.Message{Role: "user", Content: req.Input})
	}

	var final string
	for i := 0; i < maxToolIterations; i++ {
		if err := ctx.Err(); err != nil {
			return TurnResult{Messages: messages}, err
		}
		resp, err := r.Model.Chat(ctx, messages, req.Tools)
		if err != nil {
			return TurnResult{Messages: messages}, fmt.Errorf("model turn: %w", err)
		}
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		data := map[string]any{"content": resp.Content}
		if len(resp.ToolCalls) > 0 {
			names := make([]string, 0, len(resp.ToolCalls))
			for _, tc := range resp.ToolCalls {
				names = append(names, tc.Name)
			}
			data["tool_calls"] = names
		}
		emit(Event{
			Type:      EventAssistant,
			Agent:     req.Agent,
			TaskID:    req.TaskID,
			Timestamp: time.Now().UTC(),
			Data:      data,
		})

		if len(resp.ToolCalls) == 0 {
			final = resp.Content
			break
		}
		if r.Invoker == nil {
			return TurnResult{Messages: messages}, fmt.Errorf("model requested tool %q but no tools are available", resp.ToolCalls[0].Name)
		}
		for _, tc := range resp.ToolCalls {
			emit(Event{
				Type:      EventToolCall,
				Agent:     req.Agent,
				TaskID:    req.TaskID,
				Timestamp: time.Now().UTC(),
				Data:      map[string]any{"id": tc.ID, "name": tc.Name, "arguments": tc.Arguments},
			})
			output, err := r.Invoker.Invoke(ctx, tc)
			if errors.Is(err, gate.ErrTaskCancelled) || errors.Is(err, context.Canceled) {
				// Cancellation ends the turn immediately. Feeding it back to
				// the model would keep the loop producing interactions for a
				// task that is already cancelled.
				return TurnResult{Messages: messages}, err
			}
			resultData := map[string]any{"id": tc.ID, "name": tc.Name, "output": output}
			if err != nil {
				// Other tool failures are fed back to the model rather than
				// aborting the turn; the model decides how to proceed.
				output = "tool error: " + err.Error()
				resultData["output"] = output
				resultData["error"] = err.Error()
			}
			emit(Event{
				Type:      EventToolResult,
				Agent:     req.Agent,
				TaskID:    req.TaskID,
				Timestamp: time.Now().UTC(),
				Data:      resultData,
			})
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
		}
	}
	if final == "" && len(messages) > 0 {
		// Loop cap reached with tool calls still pending: surface the last
		// assistant text so the caller has something to work with.
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == "assistant" && messages[i].Content != "" {
				final = messages[i].Content
				break
			}
		}
	}

	emit(Event{
		Type:      EventTurnEnded,
		Agent:     req.Agent,
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC(),
	})
	return TurnResult{Output: final, Messages: messages}, nil
}
