package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 8192

// anthropicModel calls the Anthropic Messages API through the official SDK.
type anthropicModel struct {
	client anthropic.Client
	model  anthropic.Model
	temp   *float64
	maxTok *int
}

func newAnthropicModel(cfg Config, apiKey string) (*anthropicModel, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	return &anthropicModel{
		client: anthropic.NewClient(opts...),
		model:  model,
		temp:   cfg.Temperature,
		maxTok: cfg.MaxTokens,
	}, nil
}

func (m *anthropicModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (Response, error) {
	var (
		system string
		params []anthropic.MessageParam
	)
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case "user":
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
			}
			if len(blocks) > 0 {
				params = append(params, anthropic.NewAssistantMessage(blocks...))
			}
		case "tool":
			params = append(params, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))
		}
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if m.maxTok != nil {
		maxTokens = int64(*m.maxTok)
	}
	req := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: maxTokens,
		Messages:  params,
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if m.temp != nil {
		req.Temperature = anthropic.Float(*m.temp)
	}
	for _, t := range tools {
		props := map[string]any{}
		var required []string
		if t.Parameters != nil {
			if p, ok := t.Parameters["properties"].(map[string]any); ok {
				props = p
			}
			switch r := t.Parameters["required"].(type) {
			case []string:
				required = r
			case []any:
				for _, v := range r {
					if s, ok := v.(string); ok {
						required = append(required, s)
					}
				}
			}
		}
		req.Tools = append(req.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}

	resp, err := m.client.Messages.New(ctx, req)
	if err != nil {
		return Response{}, err
	}

	var out Response
	var text strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}
	out.Content = text.String()
	return out, nil
}
