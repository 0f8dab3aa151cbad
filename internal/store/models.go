// Package store defines the persistence interface and shared models for
// agents, teams, tasks, interactions, approvals, and the execution log.
package store

import "time"

// Agent is an LLM-backed worker or supervisor.
type Agent struct {
	AgentID      string
	Name         string
	Role         string
	AgentType    string // worker or supervisor
	SupervisorID *string
	LLMProvider  string
	LLMModel     string
	LLMBaseURL   *string
	APIKeyEnv    *string // env var holding the credential; never the credential itself
	Temperature  *float64
	MaxTokens    *int
	ToolNames    []string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Team is a pre-defined leader plus ordered member agents, distinct from the
// ad-hoc per-task leader/members used by team-mode tasks.
type Team struct {
	TeamID        string
	Name          string
	Description   string
	LeaderAgentID string
	MemberIDs     []string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Task is a unit of work. Exactly one of AgentID or TeamLeaderID+TeamMemberIDs
// determines the coordination pattern that runs it.
type Task struct {
	TaskID        string
	Title         string
	Description   string
	Priority      string
	Status        string
	AutoMode      bool
	AgentID       *string
	TeamLeaderID  *string
	TeamMemberIDs []string
	ToolNames     []string
	Result        *string
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Interaction is one recorded event in a task's execution history.
// Seq is the creation-order sequence within the store; it is what "since"
// queries key on.
type Interaction struct {
	InteractionID    string
	TaskID           string
	AgentID          *string
	InteractionType  string
	Content          string
	Metadata         map[string]any
	RequiresResponse bool
	Response         *string
	Seq              int64
	CreatedAt        time.Time
	RespondedAt      *time.Time
}

// Pending reports whether the interaction still awaits a response.
func (in Interaction) Pending() bool {
	return in.RequiresResponse && in.Response == nil
}

// ApprovalRequest asks a human to grant an agent tools beyond its set.
type ApprovalRequest struct {
	ApprovalID   string
	AgentID      string
	TaskID       *string
	ToolNames    []string
	Reason       string
	Status       string
	ResponseNote *string
	RequestedAt  time.Time
	RespondedAt  *time.Time
}

// ExecutionLogEntry is one audit record of an orchestrator or tool action.
type ExecutionLogEntry struct {
	LogID        string
	TaskID       string
	AgentID      *string
	ToolName     *string
	Action       string
	Input        string
	Output       string
	Status       string
	ErrorMessage *string
	DurationMs   int64
	CreatedAt    time.Time
}
