// Package protocol defines the websocket event envelope and the event-name
// constants published on session and task streams.
package protocol

import "time"

// ProtocolVersion is reported by the health endpoint and the version command.
const ProtocolVersion = 1

// Event names pushed on a session websocket.
const (
	EventPresenceUpdate       = "presence_update"
	EventToolStart            = "tool_start"
	EventToolResult           = "tool_result"
	EventNewFinding           = "new_finding"
	EventAutoModeChanged      = "auto_mode_changed"
	EventAutoStatus           = "auto_status"
	EventAutoStepPending      = "auto_step_pending"
	EventAutoStepDecision     = "auto_step_decision"
	EventAutoStepComplete     = "auto_step_complete"
	EventAutoPhaseChanged     = "auto_phase_changed"
	EventAutoAIReply          = "auto_ai_reply"
	EventScopeAdditionPending = "scope_addition_pending"
	EventScopeUpdated         = "scope_updated"
	EventChatMessage          = "chat_message"
)

// Task stream frame types (WS /ws/task/{id}).
const (
	TaskFrameStdout = "stdout"
	TaskFrameStderr = "stderr"
	TaskFrameDone   = "done"
)

// Event is the envelope broadcast to session subscribers. Data carries one
// of the event-specific payload structs in this package.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewEvent stamps the current time onto a payload.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{Type: eventType, Timestamp: time.Now(), Data: data}
}

// PresenceUpdatePayload is the payload for EventPresenceUpdate.
type PresenceUpdatePayload struct {
	Users []string `json:"users"`
}

// ToolStartPayload is the payload for EventToolStart.
type ToolStartPayload struct {
	Tool       string                 `json:"tool"`
	TaskID     string                 `json:"task_id"`
	Parameters map[string]interface{} `json:"parameters"`
	User       string                 `json:"user,omitempty"`
	Source     string                 `json:"source,omitempty"`
}

// ToolResultData is the `result` sub-object of ToolResultPayload.
type ToolResultData struct {
	Status     string                 `json:"status"`
	Output     string                 `json:"output"`
	Error      string                 `json:"error,omitempty"`
	ReturnCode *int                   `json:"return_code,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ToolResultPayload is the payload for EventToolResult.
type ToolResultPayload struct {
	Tool   string         `json:"tool"`
	TaskID string         `json:"task_id"`
	Result ToolResultData `json:"result"`
	Source string         `json:"source,omitempty"`
}

// NewFindingPayload is the payload for EventNewFinding.
type NewFindingPayload struct {
	Finding interface{} `json:"finding"`
}

// AutoModeChangedPayload is the payload for EventAutoModeChanged.
type AutoModeChangedPayload struct {
	Enabled   bool   `json:"enabled"`
	Objective string `json:"objective,omitempty"`
	MaxSteps  int    `json:"max_steps,omitempty"`
}

// AutoStatusPayload is the payload for EventAutoStatus.
type AutoStatusPayload struct {
	Message  string `json:"message"`
	Step     int    `json:"step,omitempty"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

// ProposedToolCall describes one tool call proposed by the LLM in an
// autonomous step, as surfaced to the operator for approval.
type ProposedToolCall struct {
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// AutoStepPendingPayload is the payload for EventAutoStepPending.
type AutoStepPendingPayload struct {
	StepID      string             `json:"step_id"`
	StepNumber  int                `json:"step_number"`
	Description string             `json:"description"`
	ToolCalls   []ProposedToolCall `json:"tool_calls"`
	AutoApproved bool              `json:"auto_approved,omitempty"`
}

// AutoStepDecisionPayload is the payload for EventAutoStepDecision.
type AutoStepDecisionPayload struct {
	StepID   string `json:"step_id"`
	Approved bool   `json:"approved"`
}

// AutoStepCompletePayload is the payload for EventAutoStepComplete.
type AutoStepCompletePayload struct {
	StepID     string             `json:"step_id"`
	StepNumber int                `json:"step_number"`
	Summary    string             `json:"summary"`
	ToolCalls  []ProposedToolCall `json:"tool_calls"`
}

// AutoPhaseChangedPayload is the payload for EventAutoPhaseChanged.
type AutoPhaseChangedPayload struct {
	PhaseNumber int    `json:"phase_number"`
	PhaseCount  int    `json:"phase_count"`
	PhaseName   string `json:"phase_name"`
	PhaseGoal   string `json:"phase_goal"`
}

// AutoAIReplyPayload is the payload for EventAutoAIReply.
type AutoAIReplyPayload struct {
	Message string `json:"message"`
}

// ScopeAdditionPendingPayload is the payload for EventScopeAdditionPending.
type ScopeAdditionPendingPayload struct {
	ApprovalID string   `json:"approval_id"`
	Hosts      []string `json:"hosts"`
	Reason     string   `json:"reason,omitempty"`
}

// ScopeUpdatedPayload is the payload for EventScopeUpdated.
type ScopeUpdatedPayload struct {
	Added       []string `json:"added"`
	TargetScope []string `json:"target_scope"`
	Reason      string   `json:"reason,omitempty"`
}

// ChatMessagePayload is the payload for EventChatMessage.
type ChatMessagePayload struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	ToolCalls []ProposedToolCall `json:"tool_calls,omitempty"`
}

// TaskStreamFrame is one frame sent over WS /ws/task/{id}.
type TaskStreamFrame struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Status     string `json:"status,omitempty"`
	ReturnCode *int   `json:"return_code,omitempty"`
}
