package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/engageops/internal/llm"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
	"github.com/nextlevelbuilder/engageops/internal/vault"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// runToolCall is the tagged-variant dispatch over the driver's closed set
// of LLM-exposed tools (§9 design note: "implement as an explicit match on
// tool name producing a typed handler; do not use reflective method
// lookup"). It always returns a tool_result content block — subprocess and
// scope failures are reported as results, never propagated as errors
// (§7 error kinds 1-2).
func (d *Driver) runToolCall(ctx context.Context, sess *session.Session, call llm.ToolCall, source string) llm.ContentBlock {
	switch call.Name {
	case "execute_tool":
		return d.execExecuteTool(ctx, sess, call, source)
	case "execute_bash":
		return d.execExecuteBash(ctx, sess, call, source)
	case "record_finding":
		return d.execRecordFinding(sess, call)
	case "read_file":
		return d.execReadFile(call)
	case "add_to_scope":
		return d.execAddToScope(ctx, sess, call)
	default:
		return errResult(call.ID, fmt.Sprintf("unknown tool %q", call.Name))
	}
}

func errResult(toolUseID, msg string) llm.ContentBlock {
	return llm.ToolResultBlock(toolUseID, msg, true)
}

func okResult(toolUseID, content string) llm.ContentBlock {
	return llm.ToolResultBlock(toolUseID, content, false)
}

func (d *Driver) execExecuteTool(ctx context.Context, sess *session.Session, call llm.ToolCall, source string) llm.ContentBlock {
	toolName, _ := call.Input["tool"].(string)
	params, _ := call.Input["parameters"].(map[string]interface{})
	if params == nil {
		params = map[string]interface{}{}
	}

	def, ok := d.tools.Get(toolName)
	if !ok {
		return errResult(call.ID, fmt.Sprintf("unknown tool definition %q", toolName))
	}

	if target, violated := scopeChecked(sess, toolName, params); violated {
		return d.reportScopeViolation(sess, call.ID, toolName, params, target, source)
	}

	real := sess.Vault.Detokenize(params)
	argv, stdin, err := tooldefs.BuildCommand(def, real)
	if err != nil {
		return errResult(call.ID, err.Error())
	}
	return d.runAndReport(ctx, sess, call.ID, toolName, argv, stdin, params, source)
}

func (d *Driver) execExecuteBash(ctx context.Context, sess *session.Session, call llm.ToolCall, source string) llm.ContentBlock {
	command, _ := call.Input["command"].(string)
	if command == "" {
		return errResult(call.ID, "command is required")
	}
	params := map[string]interface{}{"command": command}

	if target, violated := scopeChecked(sess, tooldefs.BashToolName, params); violated {
		return d.reportScopeViolation(sess, call.ID, tooldefs.BashToolName, params, target, source)
	}

	real := sess.Vault.Detokenize(params)
	argv := tooldefs.BuildBashCommand(real["command"].(string))
	return d.runAndReport(ctx, sess, call.ID, tooldefs.BashToolName, argv, "", params, source)
}

// reportScopeViolation logs and broadcasts a scope-violation tool_result
// and returns the same human-readable message to the LLM (§4.F, §7 error
// kind 2: never silently skipped, never cancels autonomous mode). The
// returned block is keyed by the model's own tool_use id, not the
// server-minted task id — the provider rejects a follow-up turn whose
// tool_result.tool_use_id it never issued.
func (d *Driver) reportScopeViolation(sess *session.Session, toolUseID, toolName string, params map[string]interface{}, target, source string) llm.ContentBlock {
	msg := scopeViolationMessage(target)
	rc := -1
	d.logAndBroadcast(sess, protocol.EventToolResult, protocol.ToolResultPayload{
		Tool: toolName, TaskID: "",
		Result: protocol.ToolResultData{Status: "blocked", Output: "", Error: msg, ReturnCode: &rc, Parameters: params},
		Source: source,
	}, "")
	return okResult(toolUseID, msg)
}

// runAndReport submits a command and reports its outcome both as a session
// event (keyed by the server-minted taskID, for task polling/streaming)
// and as the tool_result content block returned to the model (keyed by
// toolUseID, the tool_use.id from the model's own request — the two ids
// serve different audiences and must not be conflated).
func (d *Driver) runAndReport(ctx context.Context, sess *session.Session, toolUseID, toolName string, argv []string, stdin string, displayParams map[string]interface{}, source string) llm.ContentBlock {
	taskID := uuid.New().String()[:12]

	d.logAndBroadcast(sess, protocol.EventToolStart, protocol.ToolStartPayload{
		Tool: toolName, TaskID: taskID, Parameters: displayParams, Source: source,
	}, "")

	timeout := 300 * time.Second
	snap := d.exec.SubmitSync(ctx, taskID, toolName, argv, stdin, timeout)

	status := string(snap.Status)
	output := vault.Redact(snap.Stdout)
	errOut := vault.Redact(snap.Stderr)

	d.logAndBroadcast(sess, protocol.EventToolResult, protocol.ToolResultPayload{
		Tool: toolName, TaskID: taskID,
		Result: protocol.ToolResultData{Status: status, Output: snap.Stdout, Error: snap.Stderr, ReturnCode: snap.ExitCode, Parameters: displayParams},
		Source: source,
	}, "")

	summary := map[string]interface{}{"status": status, "output": output, "error": errOut, "return_code": snap.ExitCode}
	data, _ := json.Marshal(summary)
	isError := status != string("completed")
	return llm.ToolResultBlock(toolUseID, string(data), isError)
}

func (d *Driver) execRecordFinding(sess *session.Session, call llm.ToolCall) llm.ContentBlock {
	severity, _ := call.Input["severity"].(string)
	title, _ := call.Input["title"].(string)
	description, _ := call.Input["description"].(string)
	evidence, _ := call.Input["evidence"].(string)
	if title == "" || description == "" {
		return errResult(call.ID, "title and description are required")
	}
	finding, err := sess.AddFinding(session.Severity(severity), title, description, evidence)
	if err != nil {
		return errResult(call.ID, err.Error())
	}
	d.broadcast(sess.ID, protocol.EventNewFinding, protocol.NewFindingPayload{Finding: finding})
	return okResult(call.ID, fmt.Sprintf("recorded finding %s", finding.ID))
}

func (d *Driver) execReadFile(call llm.ToolCall) llm.ContentBlock {
	path, _ := call.Input["path"].(string)
	if path == "" {
		return errResult(call.ID, "path is required")
	}
	if strings.Contains(path, "..") {
		return errResult(call.ID, "path must not contain '..'")
	}
	full := filepath.Join(d.cfg.WorkspaceDir, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return errResult(call.ID, err.Error())
	}
	return okResult(call.ID, string(data))
}

func (d *Driver) execAddToScope(ctx context.Context, sess *session.Session, call llm.ToolCall) llm.ContentBlock {
	rawHosts, _ := call.Input["hosts"].([]interface{})
	reason, _ := call.Input["reason"].(string)
	var hosts []string
	for _, h := range rawHosts {
		if s, ok := h.(string); ok && s != "" {
			hosts = append(hosts, s)
		}
	}
	if len(hosts) == 0 {
		return errResult(call.ID, "hosts is required")
	}

	approvalID := uuid.New().String()[:12]
	if err := sess.OpenScopeApproval(approvalID, hosts, reason); err != nil {
		return errResult(call.ID, err.Error())
	}
	d.logAndBroadcast(sess, protocol.EventScopeAdditionPending, protocol.ScopeAdditionPendingPayload{
		ApprovalID: approvalID, Hosts: hosts, Reason: reason,
	}, "")

	deadline := time.Now().Add(d.cfg.ScopeApprovalTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if sa, ok := sess.ScopeApprovalSnapshot(approvalID); ok && sa.Resolved {
			if !sa.Decision.Approved {
				return okResult(call.ID, "scope addition rejected by operator")
			}
			added, err := sess.UpdateScope(hosts)
			if err != nil {
				return errResult(call.ID, err.Error())
			}
			d.logAndBroadcast(sess, protocol.EventScopeUpdated, protocol.ScopeUpdatedPayload{
				Added: added, TargetScope: sess.ScopeSnapshot(), Reason: reason,
			}, "")
			return okResult(call.ID, fmt.Sprintf("scope updated, added: %v", added))
		}
		if time.Now().After(deadline) {
			return okResult(call.ID, "scope addition request timed out waiting for operator approval")
		}
		select {
		case <-ctx.Done():
			return okResult(call.ID, "scope addition request cancelled")
		case <-ticker.C:
		}
	}
}
