package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// openAIModel calls an OpenAI-compatible chat completions endpoint.
type openAIModel struct {
	baseURL string
	apiKey  string
	model   string
	temp    *float64
	maxTok  *int
	client  *http.Client
}

func newOpenAIModel(cfg Config, baseURL, apiKey string) *openAIModel {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openAIModel{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		temp:    cfg.Temperature,
		maxTok:  cfg.MaxTokens,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (m *openAIModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (Response, error) {
	reqBody := map[string]any{
		"model":    m.model,
		"messages": encodeOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		reqBody["tools"] = encodeOpenAITools(tools)
		reqBody["tool_choice"] = "auto"
	}
	if m.temp != nil {
		reqBody["temperature"] = *m.temp
	}
	if m.maxTok != nil {
		reqBody["max_tokens"] = *m.maxTok
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, err
	}

	url := m.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("chat completion API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Type     string `json:"type"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Response{}, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return Response{}, fmt.Errorf("chat completion returned no choices")
	}

	out := Response{Content: apiResp.Choices[0].Message.Content}
	for _, tc := range apiResp.Choices[0].Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}

func encodeOpenAIMessages(messages []Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		m := map[string]any{"role": msg.Role, "content": msg.Content}
		if len(msg.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				calls = append(calls, map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				})
			}
			m["tool_calls"] = calls
		}
		if msg.Role == "tool" {
			m["tool_call_id"] = msg.ToolCallID
		}
		out = append(out, m)
	}
	return out
}

func encodeOpenAITools(tools []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return out
}
