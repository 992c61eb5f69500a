// Package session implements the Session Store (§4.E): the in-memory
// catalog of engagements, each owning messages, events, findings, volatile
// autonomous-mode state, and a per-session credential vault, with every
// mutation persisted atomically to a per-session JSON file.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/engageops/internal/vault"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// Severity is one of the five finding severities (§3).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Message is one turn of the chat-mode conversation, as recorded on the
// session (distinct from the LLM provider's own turn-by-turn request
// shape, which lives in internal/llm).
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
}

// Event is one append-only entry in the session's structured event log
// (§3). Type is one of the pkg/protocol.Event* constants; Payload is the
// matching pkg/protocol *Payload struct.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	User      string      `json:"user,omitempty"`
}

// UnmarshalJSON decodes Payload into its concrete pkg/protocol payload
// struct for every known Type, instead of the generic
// map[string]interface{} encoding/json would otherwise produce for an
// interface{} field. Without this, an Event reloaded from disk after a
// restart never type-switches as its original payload struct again (e.g.
// ContextSummary's `case protocol.ToolResultPayload` below would silently
// fall through to default for every event loaded from a prior run).
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp time.Time       `json:"timestamp"`
		User      string          `json:"user,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Type = raw.Type
	e.Timestamp = raw.Timestamp
	e.User = raw.User

	if len(raw.Payload) == 0 || string(raw.Payload) == "null" {
		e.Payload = nil
		return nil
	}

	switch raw.Type {
	case protocol.EventToolStart:
		var p protocol.ToolStartPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventToolResult:
		var p protocol.ToolResultPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventNewFinding:
		var p protocol.NewFindingPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventAutoModeChanged:
		var p protocol.AutoModeChangedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventAutoStatus:
		var p protocol.AutoStatusPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventAutoStepPending:
		var p protocol.AutoStepPendingPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventAutoStepDecision:
		var p protocol.AutoStepDecisionPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventAutoStepComplete:
		var p protocol.AutoStepCompletePayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventAutoPhaseChanged:
		var p protocol.AutoPhaseChangedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventAutoAIReply:
		var p protocol.AutoAIReplyPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventScopeAdditionPending:
		var p protocol.ScopeAdditionPendingPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventScopeUpdated:
		var p protocol.ScopeUpdatedPayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	case protocol.EventChatMessage:
		var p protocol.ChatMessagePayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	default:
		var p map[string]interface{}
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		e.Payload = p
	}
	return nil
}

// Finding is a recorded vulnerability or observation (§3).
type Finding struct {
	ID          string    `json:"id"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Evidence    string    `json:"evidence,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProposedToolCall is one tool call the LLM proposed during the propose
// phase of an autonomous step, surfaced to the operator for approval.
type ProposedToolCall struct {
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ApprovalDecision is the tri-state outcome of a human-in-the-loop gate:
// unset while pending, then true (approved) or false (rejected).
type ApprovalDecision struct {
	set      bool
	Approved bool
}

// Set records a decision, returning false if one was already recorded
// (§8 invariant 4: approval is single-writer).
func (d *ApprovalDecision) Set(approved bool) bool {
	if d.set {
		return false
	}
	d.set = true
	d.Approved = approved
	return true
}

// IsSet reports whether a decision has been recorded.
func (d *ApprovalDecision) IsSet() bool { return d.set }

// PendingApproval is the embedded human-in-the-loop gate for one
// autonomous step (§3).
type PendingApproval struct {
	StepID      string
	StepNumber  int
	Description string
	ToolCalls   []ProposedToolCall
	Decision    ApprovalDecision
	Resolved    bool
}

// ScopeApproval is a pending scope-addition request (§3).
type ScopeApproval struct {
	ID       string
	Hosts    []string
	Reason   string
	Decision ApprovalDecision
	Resolved bool
}

// Session is one long-lived engagement. All mutating methods acquire mu,
// mutate in-memory state, and — for durable fields — persist before
// releasing, per §9's "co-atomic with respect to other readers" design
// note. Fields below the "volatile" marker are runtime-only and are never
// included in the persisted projection (persist.go).
type Session struct {
	mu sync.Mutex

	ID          string
	Name        string
	TargetScope []string
	Notes       string
	ClientID    string
	CreatedAt   time.Time

	Messages []Message
	Events   []Event
	Findings []Finding

	// Volatile autonomous-mode state (§3 invariants: current step never
	// exceeds max, at most one pending approval at a time).
	AutoMode        bool
	AutoObjective   string
	AutoMaxSteps    int
	AutoCurrentStep int
	PendingApproval *PendingApproval
	OperatorQueue   []string

	PendingScopeApprovals map[string]*ScopeApproval

	// Vault is the per-session credential token vault. Never persisted,
	// never shared across sessions (§4.G, §9).
	Vault *vault.Vault

	onDirty func(*Session) error
	findingSeq int
}

// New constructs a fresh session with a random short id, matching the
// source convention of a truncated UUID (§9 ambient stack note).
func New(name, clientID string) *Session {
	return &Session{
		ID:                    shortID(),
		Name:                  name,
		ClientID:              clientID,
		CreatedAt:             time.Now(),
		TargetScope:           []string{},
		PendingScopeApprovals: map[string]*ScopeApproval{},
		Vault:                 vault.New(),
	}
}

func shortID() string {
	return uuid.New().String()[:12]
}

// lockedMutate runs fn under the session lock, then invokes the persist
// callback while still holding the lock so the in-memory state and the
// on-disk projection can never diverge mid-mutation (§9).
func (s *Session) lockedMutate(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	if s.onDirty != nil {
		return s.onDirty(s)
	}
	return nil
}

// AddMessage appends a chat-mode conversation turn.
func (s *Session) AddMessage(role, text, user string) error {
	return s.lockedMutate(func() {
		s.Messages = append(s.Messages, Message{Role: role, Text: text, Timestamp: time.Now(), User: user})
	})
}

// AddEvent appends a structured event to the session's event log.
func (s *Session) AddEvent(eventType string, payload interface{}, user string) error {
	return s.lockedMutate(func() {
		s.Events = append(s.Events, Event{Type: eventType, Payload: payload, Timestamp: time.Now(), User: user})
	})
}

// AddFinding appends a finding with a random short id.
func (s *Session) AddFinding(severity Severity, title, description, evidence string) (Finding, error) {
	var f Finding
	err := s.lockedMutate(func() {
		s.findingSeq++
		f = Finding{
			ID:          uuid.New().String()[:8],
			Severity:    severity,
			Title:       title,
			Description: description,
			Evidence:    evidence,
			Timestamp:   time.Now(),
		}
		s.Findings = append(s.Findings, f)
	})
	return f, err
}

// UpdateScope merges additional hosts into the target scope, skipping
// duplicates, and returns the hosts actually added.
func (s *Session) UpdateScope(add []string) ([]string, error) {
	var added []string
	err := s.lockedMutate(func() {
		existing := make(map[string]bool, len(s.TargetScope))
		for _, e := range s.TargetScope {
			existing[e] = true
		}
		for _, h := range add {
			if h == "" || existing[h] {
				continue
			}
			existing[h] = true
			s.TargetScope = append(s.TargetScope, h)
			added = append(added, h)
		}
	})
	return added, err
}

// ScopeSnapshot returns a copy of the current target scope.
func (s *Session) ScopeSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.TargetScope))
	copy(out, s.TargetScope)
	return out
}

// SetAutoMode flips the autonomous-mode flag and (on enable) seeds the
// objective/step-budget; on disable it also clears any pending approval so
// a stale gate cannot resurrect a finished run.
func (s *Session) SetAutoMode(enabled bool, objective string, maxSteps int) error {
	return s.lockedMutate(func() {
		s.AutoMode = enabled
		if enabled {
			s.AutoObjective = objective
			s.AutoMaxSteps = maxSteps
			s.AutoCurrentStep = 0
		} else {
			s.PendingApproval = nil
			s.OperatorQueue = nil
		}
	})
}

// IsAutoMode reports the current autonomous-mode flag (cooperative
// cancellation checkpoint, §5).
func (s *Session) IsAutoMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AutoMode
}

// AdvanceStep increments the current step counter. Callers must ensure
// AutoCurrentStep never exceeds AutoMaxSteps (§3 invariant); the freeform
// autonomous loop checks this before calling.
func (s *Session) AdvanceStep() error {
	return s.lockedMutate(func() {
		s.AutoCurrentStep++
	})
}

// StepBudget returns the current/max step counters under lock.
func (s *Session) StepBudget() (current, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AutoCurrentStep, s.AutoMaxSteps
}

// PublishPendingApproval installs a new pending approval. Returns an error
// if one is already outstanding (§3/§8: at most one pending approval).
func (s *Session) PublishPendingApproval(stepID string, stepNumber int, description string, calls []ProposedToolCall) (*PendingApproval, error) {
	var pa *PendingApproval
	outstanding := ""
	err := s.lockedMutate(func() {
		if s.PendingApproval != nil && !s.PendingApproval.Resolved {
			outstanding = s.PendingApproval.StepID
			return
		}
		pa = &PendingApproval{StepID: stepID, StepNumber: stepNumber, Description: description, ToolCalls: calls}
		s.PendingApproval = pa
	})
	if err == nil && outstanding != "" {
		err = fmt.Errorf("session: approval %s is already pending", outstanding)
	}
	return pa, err
}

// ResolveApproval records the operator's decision for stepID. It is a
// single-writer gate (§8 invariant 4): once resolved, a second call for the
// same stepID is a no-op and returns false.
func (s *Session) ResolveApproval(stepID string, approved bool) (bool, error) {
	ok := false
	err := s.lockedMutate(func() {
		pa := s.PendingApproval
		if pa == nil || pa.StepID != stepID || pa.Resolved {
			return
		}
		if !pa.Decision.Set(approved) {
			return
		}
		pa.Resolved = true
		ok = true
	})
	return ok, err
}

// CurrentApproval returns the live pending approval pointer, or nil.
func (s *Session) CurrentApproval() *PendingApproval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PendingApproval
}

// ClearApproval removes the resolved pending approval so the "at most one
// pending" invariant holds for the next step.
func (s *Session) ClearApproval() error {
	return s.lockedMutate(func() {
		s.PendingApproval = nil
	})
}

// EnqueueOperatorMessage appends an operator chat message received while an
// approval is outstanding (§4.J "operator messages queued mid-run").
func (s *Session) EnqueueOperatorMessage(text string) error {
	return s.lockedMutate(func() {
		s.OperatorQueue = append(s.OperatorQueue, text)
	})
}

// DrainOperatorMessages atomically empties and returns the queued operator
// messages.
func (s *Session) DrainOperatorMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.OperatorQueue
	s.OperatorQueue = nil
	return drained
}

// OpenScopeApproval installs a pending scope-addition approval.
func (s *Session) OpenScopeApproval(id string, hosts []string, reason string) error {
	return s.lockedMutate(func() {
		s.PendingScopeApprovals[id] = &ScopeApproval{ID: id, Hosts: hosts, Reason: reason}
	})
}

// ResolveScopeApproval records the decision for a scope-addition approval
// keyed by id. Single-writer, same as step approvals.
func (s *Session) ResolveScopeApproval(id string, approved bool) (*ScopeApproval, bool, error) {
	var sa *ScopeApproval
	ok := false
	err := s.lockedMutate(func() {
		cand, found := s.PendingScopeApprovals[id]
		if !found || cand.Resolved {
			return
		}
		if !cand.Decision.Set(approved) {
			return
		}
		cand.Resolved = true
		sa = cand
		ok = true
	})
	return sa, ok, err
}

// ScopeApprovalSnapshot returns the current decision state for id without
// mutating it, used by pollers.
func (s *Session) ScopeApprovalSnapshot(id string) (*ScopeApproval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa, ok := s.PendingScopeApprovals[id]
	return sa, ok
}

// contextSummaryWindow bounds how many recent events ContextSummary folds
// in, matching the original draft's fixed-size recency window.
const contextSummaryWindow = 20

// ContextSummary builds a condensed system-prompt primer from the current
// scope plus the tail of the event log and the recorded findings, for
// seeding autonomous-mode runs without replaying the full conversation.
// Ported from original_source/backend/session_manager.py's
// get_context_summary(), adapted to a Go string builder over the last
// contextSummaryWindow events instead of a Python list comprehension.
func (s *Session) ContextSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Engagement %q", s.Name)
	if len(s.TargetScope) > 0 {
		fmt.Fprintf(&b, " (scope: %s)", strings.Join(s.TargetScope, ", "))
	}
	b.WriteString(".\n")

	if len(s.Findings) > 0 {
		b.WriteString("Findings so far:\n")
		for _, f := range s.Findings {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Title)
		}
	}

	events := s.Events
	if len(events) > contextSummaryWindow {
		events = events[len(events)-contextSummaryWindow:]
	}
	if len(events) > 0 {
		b.WriteString("Recent activity:\n")
		for _, e := range events {
			switch payload := e.Payload.(type) {
			case protocol.ToolResultPayload:
				fmt.Fprintf(&b, "- %s ran %s: %s\n", e.Type, payload.Tool, payload.Result.Status)
			default:
				fmt.Fprintf(&b, "- %s\n", e.Type)
			}
		}
	}
	return b.String()
}
