// Package llm resolves an agent's provider configuration into a chat model
// handle. Providers: openai, ollama, and custom OpenAI-compatible endpoints
// over raw HTTP; anthropic via the official SDK.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Message is one turn of a conversation in provider-neutral form.
type Message struct {
	Role       string // system, user, assistant, tool
	Content    string
	ToolCalls  []ToolCall // set on assistant turns that requested tools
	ToolCallID string     // set on tool-result turns
	ToolName   string     // set on tool-result turns
}

// ToolCall is a model's request to invoke a tool. Arguments is raw JSON.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec describes a callable tool. Parameters is a JSON-schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is one bounded model turn: either final text, tool calls, or both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel is a resolved connection to one configured model.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (Response, error)
}

// Config selects and parameterizes a provider. APIKeyEnv names the env var
// holding the credential; credentials are never persisted.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKeyEnv   string
	Temperature *float64
	MaxTokens   *int
}

// Resolve returns a ChatModel for the given config.
func Resolve(cfg Config) (ChatModel, error) {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		return newAnthropicModel(cfg, apiKey)
	case "openai", "":
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com"
		}
		return newOpenAIModel(cfg, base, apiKey), nil
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		// Ollama speaks the OpenAI-compatible API and needs no key.
		return newOpenAIModel(cfg, base, apiKey), nil
	case "custom":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider custom requires a base URL")
		}
		return newOpenAIModel(cfg, cfg.BaseURL, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
