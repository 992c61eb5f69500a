// Package agent implements the Agent Driver (§4.J): the chat-mode and
// autonomous-mode conversational loop that calls the LLM, executes its
// proposed tool calls through the executor, enforces scope and credential
// defenses, and gates autonomous execution behind human approval.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/engageops/internal/bus"
	"github.com/nextlevelbuilder/engageops/internal/executor"
	"github.com/nextlevelbuilder/engageops/internal/llm"
	"github.com/nextlevelbuilder/engageops/internal/scope"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// tracer follows the teacher's span-per-run/span-per-step instrumentation
// idiom; no exporter is wired (an exporter backend is out of scope, per
// SPEC_FULL's DOMAIN STACK), so these spans are only observable through
// whatever global TracerProvider the process installs (noop by default).
var tracer = otel.Tracer("engageops/agent")

// Config carries the driver's tunables (§5 timeouts, §6 max_tokens).
type Config struct {
	Model                string
	MaxTokens            int
	MaxToolIterations    int
	StepApprovalTimeout  time.Duration // §5: 600s
	ScopeApprovalTimeout time.Duration // §5: 90s
	DefaultMaxSteps      int
	SystemPrompt         string
	WorkspaceDir         string // artifact root for read_file (§4.J)
}

// Driver is the conversational and autonomous-mode execution engine
// (§4.J). One Driver serves every session; per-session state lives on the
// session.Session itself.
type Driver struct {
	provider llm.Provider
	sessions *session.Store
	tools    *tooldefs.Registry
	exec     *executor.Executor
	hub      *bus.Hub
	cfg      Config

	// autoCancels lets StopAutonomous interrupt a session's running
	// autonomous loop promptly instead of waiting for its next checkpoint.
	autoMu      sync.Mutex
	autoCancels map[string]context.CancelFunc
}

// New constructs a Driver wired to its collaborators.
func New(provider llm.Provider, sessions *session.Store, tools *tooldefs.Registry, exec *executor.Executor, hub *bus.Hub, cfg Config) *Driver {
	return &Driver{
		provider: provider, sessions: sessions, tools: tools, exec: exec, hub: hub, cfg: cfg,
		autoCancels: map[string]context.CancelFunc{},
	}
}

func (d *Driver) broadcast(sessionID, eventType string, payload interface{}) {
	d.hub.Broadcast(sessionID, protocol.NewEvent(eventType, payload))
}

// logAndBroadcast appends an event to the session log, then broadcasts it
// — in that order for every call site, normalizing the two drafts the
// source had diverged on (§9: "the spec normalizes to 'log then
// broadcast' for both").
func (d *Driver) logAndBroadcast(sess *session.Session, eventType string, payload interface{}, user string) {
	if err := sess.AddEvent(eventType, payload, user); err != nil {
		slog.Error("agent.event_persist_failed", "session_id", sess.ID, "event", eventType, "error", err)
	}
	d.broadcast(sess.ID, eventType, payload)
}

// Dispatch implements scheduler.Dispatcher: a scheduled job fires through
// exactly the same path as an operator-issued tool run (§4.H).
func (d *Driver) Dispatch(ctx context.Context, sessionID, toolName string, params map[string]interface{}) error {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("agent: unknown session %s", sessionID)
	}
	call := llm.ToolCall{ID: "sched-" + toolName, Name: "execute_tool", Input: map[string]interface{}{"tool": toolName, "parameters": params}}
	if toolName == tooldefs.BashToolName {
		call = llm.ToolCall{ID: "sched-" + toolName, Name: "execute_bash", Input: params}
	}
	result := d.runToolCall(ctx, sess, call, "scheduler")
	if result.ToolResultError {
		return fmt.Errorf("agent: scheduled tool run failed: %s", result.ToolResultText)
	}
	return nil
}

// scopeChecked extracts a target from a proposed call and enforces scope,
// returning ("", false) when no target could be extracted (scope soundness
// only binds calls that carry an extractable target, §8 invariant 2),
// (target, false) when the target is in scope, or (target, true) on
// violation.
func scopeChecked(sess *session.Session, toolName string, params map[string]interface{}) (target string, violated bool) {
	var ok bool
	if toolName == tooldefs.BashToolName {
		if cmd, isStr := params["command"].(string); isStr {
			target, ok = scope.ExtractFromShell(cmd)
		}
	} else {
		target, ok = scope.ExtractFromParams(params)
	}
	if !ok {
		return "", false
	}
	if scope.InScope(target, sess.ScopeSnapshot()) {
		return target, false
	}
	return target, true
}

func scopeViolationMessage(target string) string {
	return fmt.Sprintf("[SCOPE VIOLATION] Target '%s' is outside the defined engagement scope.", target)
}

// startSpan starts a span named op under the trace root for sess,
// following the teacher's per-run/per-step instrumentation idiom.
func startSpan(ctx context.Context, op string, sess *session.Session) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes())
}
