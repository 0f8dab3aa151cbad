// Package models provides shared types for the agentteam HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Agent is an LLM-backed worker or supervisor that can be assigned tasks.
type Agent struct {
	AgentID      string    `json:"agent_id"`
	Name         string    `json:"name"`
	Role         string    `json:"role,omitempty"`
	AgentType    string    `json:"agent_type"` // worker or supervisor
	SupervisorID *string   `json:"supervisor_id,omitempty"`
	LLMProvider  string    `json:"llm_provider"`
	LLMModel     string    `json:"llm_model"`
	LLMBaseURL   *string   `json:"llm_base_url,omitempty"`
	APIKeyEnv    *string   `json:"api_key_env,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	MaxTokens    *int      `json:"max_tokens,omitempty"`
	ToolNames    []string  `json:"tool_names,omitempty"`
	Status       string    `json:"status"` // idle, running, error
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Team is a pre-defined leader plus ordered member agents.
type Team struct {
	TeamID        string    `json:"team_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	LeaderAgentID string    `json:"leader_agent_id"`
	MemberIDs     []string  `json:"member_ids"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Task is a unit of work executed by a single agent, a supervisor's workers,
// or an ad-hoc leader/member team.
type Task struct {
	TaskID         string     `json:"task_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Status         string     `json:"status"`
	DetailedStatus string     `json:"detailed_status,omitempty"`
	AutoMode       bool       `json:"auto_mode"`
	AgentID        *string    `json:"agent_id,omitempty"`
	TeamLeaderID   *string    `json:"team_leader_id,omitempty"`
	TeamMemberIDs  []string   `json:"team_member_ids,omitempty"`
	ToolNames      []string   `json:"tool_names,omitempty"`
	Result         *string    `json:"result,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Interaction is one recorded event in a task's execution history.
// Some interactions (questions) require a response before execution proceeds.
type Interaction struct {
	InteractionID    string         `json:"interaction_id"`
	TaskID           string         `json:"task_id"`
	AgentID          *string        `json:"agent_id,omitempty"`
	InteractionType  string         `json:"interaction_type"`
	Content          string         `json:"content"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	RequiresResponse bool           `json:"requires_response"`
	Response         *string        `json:"response,omitempty"`
	CreatedAt        time.Time      `json:"created_at,omitempty"`
	RespondedAt      *time.Time     `json:"responded_at,omitempty"`
}

// ApprovalRequest asks a human to grant an agent tools beyond its set.
type ApprovalRequest struct {
	ApprovalID   string     `json:"approval_id"`
	AgentID      string     `json:"agent_id"`
	TaskID       *string    `json:"task_id,omitempty"`
	ToolNames    []string   `json:"tool_names"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"` // pending, approved, rejected, timeout
	ResponseNote *string    `json:"response_note,omitempty"`
	RequestedAt  time.Time  `json:"requested_at,omitempty"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
}

// ExecutionLogEntry is the audit trail of orchestrator and tool actions,
// distinct from the user-facing interaction history.
type ExecutionLogEntry struct {
	LogID        string    `json:"log_id"`
	TaskID       string    `json:"task_id"`
	AgentID      *string   `json:"agent_id,omitempty"`
	ToolName     *string   `json:"tool_name,omitempty"`
	Action       string    `json:"action"`
	Input        string    `json:"input,omitempty"`
	Output       string    `json:"output,omitempty"`
	Status       string    `json:"status"` // started, success, failed
	ErrorMessage *string   `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// TaskAnalysis is the model's advisory read of a task description before
// anyone commits to running it. Nothing in it is persisted.
type TaskAnalysis struct {
	TaskType         string   `json:"task_type"`  // research, analysis, writing, coding, data_processing, communication
	Complexity       string   `json:"complexity"` // simple, medium, complex
	RecommendedTools []string `json:"recommended_tools"`
	Reasoning        string   `json:"reasoning,omitempty"`
}

// Config is the /config API response.
type Config struct {
	Home    string `json:"home,omitempty"`
	Version string `json:"version,omitempty"`
	Driver  string `json:"driver,omitempty"`
}
