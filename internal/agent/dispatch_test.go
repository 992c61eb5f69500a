package agent

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nextlevelbuilder/engageops/internal/bus"
	"github.com/nextlevelbuilder/engageops/internal/executor"
	"github.com/nextlevelbuilder/engageops/internal/llm"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
)

// scriptedProvider returns queued responses in order, one per Chat call.
type scriptedProvider struct {
	responses []llm.ChatResponse
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}
func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) Name() string         { return "scripted" }

func newTestDriver(t *testing.T, provider llm.Provider, scopeList []string) (*Driver, *session.Session) {
	t.Helper()
	dir := t.TempDir()
	store, err := session.NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess, err := store.Create("eng-1", "client-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(scopeList) > 0 {
		if _, err := sess.UpdateScope(scopeList); err != nil {
			t.Fatalf("UpdateScope: %v", err)
		}
	}

	registryPath := dir + "/tools.yaml"
	if err := os.WriteFile(registryPath, []byte("tools:\n  - name: echo_tool\n    binary: echo\n    parameters:\n      target:\n        kind: positional\n"), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	reg, err := tooldefs.NewRegistry(registryPath)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	d := New(provider, store, reg, executor.New(), bus.NewHub(), Config{
		Model: "test-model", MaxTokens: 512, MaxToolIterations: 5,
		StepApprovalTimeout: 2 * time.Second, ScopeApprovalTimeout: 2 * time.Second,
		DefaultMaxSteps: 3, SystemPrompt: "test", WorkspaceDir: dir,
	})
	return d, sess
}

func TestChat_ExecutesToolThenReturnsFinalText(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{
			llm.ToolUseBlock("t1", "execute_tool", map[string]interface{}{
				"tool":       "echo_tool",
				"parameters": map[string]interface{}{"target": "example.com"},
			}),
		}}},
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("done")}}},
	}}
	d, sess := newTestDriver(t, provider, []string{"example.com"})

	reply, err := d.Chat(context.Background(), sess.ID, "scan example.com", "op1")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "done" {
		t.Fatalf("reply = %q, want %q", reply, "done")
	}
	if len(sess.Events) == 0 {
		t.Fatalf("expected tool_start/tool_result events to be logged")
	}
}

func TestChat_ScopeViolationReportedNotExecuted(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{
			llm.ToolUseBlock("t1", "execute_tool", map[string]interface{}{
				"tool":       "echo_tool",
				"parameters": map[string]interface{}{"target": "out-of-scope.com"},
			}),
		}}},
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("acknowledged")}}},
	}}
	d, sess := newTestDriver(t, provider, []string{"example.com"})

	if _, err := d.Chat(context.Background(), sess.ID, "scan out-of-scope.com", "op1"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	// The executor must never have been invoked: a blocked call reports a
	// tool_result event with no task id, rather than a completed/failed one.
	if len(sess.Events) == 0 {
		t.Fatalf("expected a tool_result violation event")
	}
}

func TestExecuteBash_UnknownTargetSkipsScopeCheck(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{
			llm.ToolUseBlock("t1", "execute_bash", map[string]interface{}{"command": "echo hello"}),
		}}},
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("ok")}}},
	}}
	d, sess := newTestDriver(t, provider, []string{"example.com"})

	reply, err := d.Chat(context.Background(), sess.ID, "run echo", "op1")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "ok" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestRecordFinding_AppendsToSession(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{
			llm.ToolUseBlock("t1", "record_finding", map[string]interface{}{
				"severity": "high", "title": "open port", "description": "22/tcp open",
			}),
		}}},
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("recorded")}}},
	}}
	d, sess := newTestDriver(t, provider, nil)

	if _, err := d.Chat(context.Background(), sess.ID, "note the finding", "op1"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(sess.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(sess.Findings))
	}
	if sess.Findings[0].Title != "open port" {
		t.Fatalf("title = %q", sess.Findings[0].Title)
	}
}

func TestRunToolCall_ResultKeyedByModelToolUseID(t *testing.T) {
	// The provider contract requires tool_result.tool_use_id to echo back
	// the tool_use.id the model issued, never a server-internal task id.
	d, sess := newTestDriver(t, &scriptedProvider{}, []string{"example.com"})

	call := llm.ToolCall{ID: "toolu_abc123", Name: "execute_tool", Input: map[string]interface{}{
		"tool":       "echo_tool",
		"parameters": map[string]interface{}{"target": "example.com"},
	}}
	block := d.runToolCall(context.Background(), sess, call, "chat")
	if block.ToolResultForID != call.ID {
		t.Fatalf("tool_result.tool_use_id = %q, want %q", block.ToolResultForID, call.ID)
	}
}

func TestRunToolCall_ScopeViolationKeyedByModelToolUseID(t *testing.T) {
	d, sess := newTestDriver(t, &scriptedProvider{}, []string{"example.com"})

	call := llm.ToolCall{ID: "toolu_def456", Name: "execute_tool", Input: map[string]interface{}{
		"tool":       "echo_tool",
		"parameters": map[string]interface{}{"target": "evil.com"},
	}}
	block := d.runToolCall(context.Background(), sess, call, "chat")
	if block.ToolResultForID != call.ID {
		t.Fatalf("tool_result.tool_use_id = %q, want %q", block.ToolResultForID, call.ID)
	}
}

func TestReadFile_RejectsPathTraversal(t *testing.T) {
	provider := &scriptedProvider{}
	d, sess := newTestDriver(t, provider, nil)

	call := llm.ToolCall{ID: "t1", Name: "read_file", Input: map[string]interface{}{"path": "../../etc/passwd"}}
	block := d.runToolCall(context.Background(), sess, call, "chat")
	if !block.ToolResultError {
		t.Fatalf("expected error result for path traversal attempt")
	}
}
