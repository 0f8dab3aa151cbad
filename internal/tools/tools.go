// Package tools holds the built-in tool registry exposed to agents. Tools are
// registered explicitly and selected per task, so an agent only ever sees the
// tools its task grants.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
)

// Handler executes one tool call. Args is the raw JSON arguments object from
// the model.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

type Tool struct {
	Spec llm.ToolSpec
	Run  Handler
}

// Registry is a named set of tools. It satisfies the runtime's ToolInvoker.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Spec.Name] = t
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Specs returns the tool specs for the given names in registry order.
// Unknown names are skipped. An empty selection returns all tools.
func (r *Registry) Specs(names []string) []llm.ToolSpec {
	if len(names) == 0 {
		names = r.Names()
	}
	out := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t.Spec)
		}
	}
	return out
}

// Select returns a registry restricted to the given names. Unknown names are
// skipped; an empty selection yields an empty registry.
func (r *Registry) Select(names []string) *Registry {
	sub := NewRegistry()
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			sub.Register(t)
		}
	}
	return sub
}

// Invoke dispatches a model-requested tool call.
func (r *Registry) Invoke(ctx context.Context, call llm.ToolCall) (string, error) {
	t, ok := r.tools[call.Name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", call.Name)
	}
	args := call.Arguments
	if args == "" {
		args = "{}"
	}
	return t.Run(ctx, json.RawMessage(args))
}

func llmToolSpec(name, description string, params map[string]any) llm.ToolSpec {
	return llm.ToolSpec{Name: name, Description: description, Parameters: params}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
