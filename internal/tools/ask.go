package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Asker blocks until a human answers the question, or returns the synthetic
// answer immediately when the task runs unattended.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// RegisterAskUser adds ask_user, which routes a question from the agent to a
// human through the given Asker.
func RegisterAskUser(r *Registry, asker Asker) {
	r.Register(Tool{
		Spec: llmToolSpec("ask_user",
			"Ask the human operator a question and wait for their answer. Use this when the task is ambiguous or a decision needs human judgment.",
			objectSchema(map[string]any{
				"question": map[string]any{"type": "string", "description": "the question to ask"},
			}, "question")),
		Run: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("ask_user: bad arguments: %w", err)
			}
			if in.Question == "" {
				return "", fmt.Errorf("ask_user: question is required")
			}
			return asker.Ask(ctx, in.Question)
		},
	})
}
