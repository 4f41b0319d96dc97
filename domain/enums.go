// Package domain defines the core models exchanged with the remote run service.
package domain

// RunStatus represents the service-owned status of a run. The orchestrator only
// observes it; transitions happen server-side.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// RunStepType represents the type of a run step.
type RunStepType string

const (
	RunStepTypeMessageCreation RunStepType = "message_creation"
	RunStepTypeToolCalls       RunStepType = "tool_calls"
)

// ToolCallType represents the kind of a tool call. Function calls are executed
// locally; the other kinds run entirely inside the remote service.
type ToolCallType string

const (
	ToolCallTypeFunction       ToolCallType = "function"
	ToolCallTypeWebSearch      ToolCallType = "web_search"
	ToolCallTypeDocumentSearch ToolCallType = "document_search"
)

// Role represents the author of a message or conversation entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// ActionTypeSubmitToolOutputs is the only required-action type the service emits.
const ActionTypeSubmitToolOutputs = "submit_tool_outputs"

// Outcome classifies how a conversation turn ended. None of these abort the batch.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeRunFailed        Outcome = "run_failed"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeRetryExhausted   Outcome = "retry_exhausted"
	OutcomeSubmissionFailed Outcome = "submission_failed"
	// OutcomeTurnError covers per-turn failures outside the poll loop itself,
	// e.g. thread or run creation errors caught at the turn boundary.
	OutcomeTurnError Outcome = "turn_error"
)
