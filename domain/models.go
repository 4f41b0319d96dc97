package domain

import (
	"encoding/json"
	"time"
)

// Thread is an ordered, append-only conversation container owned by the run service.
type Thread struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single thread entry as stored by the run service. ToolCalls is a
// derived field attached by the converter from run-step records; it is never part
// of the wire payload.
type Message struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id"`
	RunID     string        `json:"run_id,omitempty"`
	Role      Role          `json:"role"`
	Content   []ContentPart `json:"content"`
	CreatedAt time.Time     `json:"created_at"`

	ToolCalls []ToolCall `json:"-"`
}

// ContentPart is one element of a message's content sequence.
type ContentPart struct {
	Type string      `json:"type"`
	Text TextContent `json:"text"`
}

// TextContent holds the text value of a content part.
type TextContent struct {
	Value string `json:"value"`
}

// Run is one server-side execution attempt of an agent against a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	AgentID        string          `json:"agent_id"`
	Status         RunStatus       `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
}

// RunError is the service-reported error for a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequiredAction is the prerequisite the caller must satisfy before the run can
// proceed.
type RequiredAction struct {
	Type              string                   `json:"type"`
	SubmitToolOutputs *SubmitToolOutputsAction `json:"submit_tool_outputs,omitempty"`
}

// SubmitToolOutputsAction carries the tool calls awaiting outputs.
type SubmitToolOutputsAction struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// RunStep records one unit of work performed by a run: either the creation of a
// message or a batch of tool calls.
type RunStep struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Type        RunStepType `json:"type"`
	StepDetails StepDetails `json:"step_details"`
}

// StepDetails holds the type-specific payload of a run step.
type StepDetails struct {
	MessageCreation *MessageCreationRef `json:"message_creation,omitempty"`
	ToolCalls       []ToolCall          `json:"tool_calls,omitempty"`
}

// MessageCreationRef points at the message a run step produced.
type MessageCreationRef struct {
	MessageID string `json:"message_id"`
}

// ToolCall is a request, emitted mid-run, for the caller to execute a named
// function or acknowledge a managed capability. ID is the deduplication key: a
// given id is executed at most once per run.
type ToolCall struct {
	ID       string          `json:"id"`
	Type     ToolCallType    `json:"type"`
	Function *FunctionCall   `json:"function,omitempty"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// FunctionCall names a registered function and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolOutput resolves one function-type tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}
