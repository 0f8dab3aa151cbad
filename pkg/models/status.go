package models

// Task statuses used throughout the codebase.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
	TaskCancelled = "cancelled"
)

// Derived detailed statuses. Never stored; computed from pending
// interactions and approvals while a task is running.
const (
	DetailedWaitingInput    = "waiting_input"
	DetailedWaitingApproval = "waiting_approval"
)

// Agent statuses.
const (
	AgentIdle    = "idle"
	AgentRunning = "running"
	AgentError   = "error"
)

// Agent types.
const (
	AgentTypeWorker     = "worker"
	AgentTypeSupervisor = "supervisor"
)

// Interaction types.
const (
	InteractionAgentThinking = "agent_thinking"
	InteractionToolCall      = "tool_call"
	InteractionToolResult    = "tool_result"
	InteractionQuestion      = "question"
	InteractionUserResponse  = "user_response"
	InteractionUserMessage   = "user_message"
	InteractionInfo          = "info"
	InteractionError         = "error"
	InteractionResult        = "result"
)

// Approval request statuses.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
	ApprovalTimeout  = "timeout"
)

// Execution log statuses.
const (
	LogStarted = "started"
	LogSuccess = "success"
	LogFailed  = "failed"
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultInteractionLimit    = 500
	DefaultTaskListLimit       = 1000
	DefaultSSEChannelBuffer    = 256
	DefaultRecoveryConcurrency = 4
)
