package store

import "context"

// Store is the persistence interface for agents, teams, tasks, interactions,
// approvals, and the execution log. It is the sole synchronization medium
// between task executions and the rest of the system: gates and cancellation
// checks poll it rather than sharing in-memory state.
// Implementations: the SQLite store in this package and *postgres.Store.
type Store interface {
	// Agents
	ListAgents(ctx context.Context) ([]Agent, error)
	GetAgent(ctx context.Context, agentID string) (Agent, error)
	CreateAgent(ctx context.Context, a Agent) (Agent, error)
	UpdateAgent(ctx context.Context, a Agent) error
	SetAgentStatus(ctx context.Context, agentID, status string) error
	DeleteAgent(ctx context.Context, agentID string) error

	// Teams
	ListTeams(ctx context.Context) ([]Team, error)
	GetTeam(ctx context.Context, teamID string) (Team, error)
	CreateTeam(ctx context.Context, t Team) (Team, error)
	UpdateTeam(ctx context.Context, t Team) error
	DeleteTeam(ctx context.Context, teamID string) error

	// Tasks
	ListTasks(ctx context.Context, status string, limit int) ([]Task, error)
	GetTask(ctx context.Context, taskID string) (Task, error)
	CreateTask(ctx context.Context, t Task) (Task, error)
	UpdateTask(ctx context.Context, t Task) error
	SetTaskStatus(ctx context.Context, taskID, status string, result, errMsg *string) error
	SetTaskDescription(ctx context.Context, taskID, description string) error
	SetTaskAutoMode(ctx context.Context, taskID string, autoMode bool) error
	AssignTaskAgent(ctx context.Context, taskID, agentID string) error
	TaskStatus(ctx context.Context, taskID string) (string, error)
	ListRunningTasks(ctx context.Context) ([]Task, error)
	DeleteTask(ctx context.Context, taskID string) error

	// Interactions (append-only; response is the single mutable field)
	CreateInteraction(ctx context.Context, in Interaction) (Interaction, error)
	GetInteraction(ctx context.Context, interactionID string) (Interaction, error)
	ListInteractions(ctx context.Context, taskID string, opts InteractionQuery) ([]Interaction, error)
	ListPendingInteractions(ctx context.Context, taskID string) ([]Interaction, error)
	HasPendingInteraction(ctx context.Context, taskID string) (bool, error)
	RespondInteraction(ctx context.Context, interactionID, response string) (Interaction, error)

	// Approval requests
	CreateApproval(ctx context.Context, a ApprovalRequest) (ApprovalRequest, error)
	GetApproval(ctx context.Context, approvalID string) (ApprovalRequest, error)
	ListPendingApprovals(ctx context.Context, agentID string) ([]ApprovalRequest, error)
	HasPendingApproval(ctx context.Context, taskID string) (bool, error)
	ResolveApproval(ctx context.Context, approvalID, status string, note *string) (bool, error)

	// Execution log (audit trail)
	AppendExecutionLog(ctx context.Context, e ExecutionLogEntry) (ExecutionLogEntry, error)
	ListExecutionLog(ctx context.Context, taskID string, limit int) ([]ExecutionLogEntry, error)

	// Lifecycle
	Close() error
}

// InteractionQuery filters ListInteractions. SinceID restricts to entries
// created after the given interaction; Type filters by interaction_type;
// Limit caps the result (0 = default).
type InteractionQuery struct {
	SinceID string
	Type    string
	Limit   int
}
