package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// maxRecommendedTools caps the advisory tool list so the analysis stays a
// shortlist rather than echoing the whole registry.
const maxRecommendedTools = 5

// AnalyzeTask asks the model to classify a task description and pick the
// registered tools it would need. Advisory only: the caller decides whether
// to grant anything. Recommended names that do not match a registered tool
// are dropped, and a response that is not the requested JSON degrades to an
// unknown classification instead of an error.
func (o *Orchestrator) AnalyzeTask(ctx context.Context, model llm.ChatModel, description string) (models.TaskAnalysis, error) {
	if strings.TrimSpace(description) == "" {
		return models.TaskAnalysis{}, fmt.Errorf("task description required")
	}

	var sb strings.Builder
	sb.WriteString("You are a task analysis expert. Analyze the task below and recommend the tools it needs.\n\n")
	fmt.Fprintf(&sb, "Task:\n%s\n\nAvailable tools:\n", description)
	for _, spec := range o.Tools.Specs(nil) {
		fmt.Fprintf(&sb, "- %s: %s\n", spec.Name, spec.Description)
	}
	fmt.Fprintf(&sb, `
Answer with JSON only, no prose:
{
  "task_type": "research/analysis/writing/coding/data_processing/communication",
  "complexity": "simple/medium/complex",
  "recommended_tools": ["tool_name"],
  "reasoning": "one or two sentences on why these tools"
}

Recommend only tools from the available list, at most %d, with exact names.
`, maxRecommendedTools)

	resp, err := model.Chat(ctx, []llm.Message{{Role: "user", Content: sb.String()}}, nil)
	if err != nil {
		return models.TaskAnalysis{}, fmt.Errorf("analysis turn: %w", err)
	}

	analysis, ok := parseAnalysis(resp.Content)
	if !ok {
		return models.TaskAnalysis{
			TaskType:         "unknown",
			Complexity:       "medium",
			RecommendedTools: []string{},
			Reasoning:        "analysis response was not valid JSON",
		}, nil
	}

	known := make(map[string]bool)
	for _, name := range o.Tools.Names() {
		known[name] = true
	}
	valid := make([]string, 0, len(analysis.RecommendedTools))
	for _, name := range analysis.RecommendedTools {
		if known[name] && len(valid) < maxRecommendedTools {
			valid = append(valid, name)
		}
	}
	analysis.RecommendedTools = valid
	return analysis, nil
}

// parseAnalysis pulls the JSON object out of model output that may be
// wrapped in markdown fences or surrounding prose.
func parseAnalysis(content string) (models.TaskAnalysis, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return models.TaskAnalysis{}, false
	}
	var out models.TaskAnalysis
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return models.TaskAnalysis{}, false
	}
	return out, true
}
