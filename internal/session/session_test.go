package session

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

func TestStore_PersistReloadIdentity(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := st.Create("engagement-1", "client-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddMessage("operator", "run nmap", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEvent(protocol.EventToolStart, protocol.ToolStartPayload{Tool: "nmap"}, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddFinding(SeverityHigh, "Open port", "22 open", "nmap output"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateScope([]string{"example.com"}); err != nil {
		t.Fatal(err)
	}

	before := s.toProjection()

	st2, err := NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	reloaded, ok := st2.Get(s.ID)
	if !ok {
		t.Fatal("session not reloaded")
	}
	after := reloaded.toProjection()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("reload mismatch:\nbefore=%+v\nafter=%+v", before, after)
	}
}

func TestSession_TokenVaultNeverPersisted(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewStore(dir, nil)
	s, _ := st.Create("engagement-1", "")
	s.Vault.Mint("hunter2")

	data, err := os.ReadFile(dir + "/" + s.ID + ".json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Error("vaulted credential must never appear in persisted JSON")
	}
}

func TestSession_ApprovalResolveIsSingleWriter(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewStore(dir, nil)
	s, _ := st.Create("e", "")
	if _, err := s.PublishPendingApproval("step-1", 1, "do x", nil); err != nil {
		t.Fatal(err)
	}
	if s.CurrentApproval() == nil {
		t.Fatal("expected pending approval")
	}
	ok, err := s.ResolveApproval("step-1", true)
	if err != nil || !ok {
		t.Fatalf("expected first resolve to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = s.ResolveApproval("step-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second resolve for the same step must be a no-op")
	}
	if !s.CurrentApproval().Decision.Approved {
		t.Error("decision must retain the first write, not the second")
	}
}

func TestSession_ContextSummary(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewStore(dir, nil)
	s, _ := st.Create("recon-engagement", "")
	if _, err := s.UpdateScope([]string{"example.com"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddFinding(SeverityHigh, "Open port", "22 open", "nmap output"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEvent("tool_start", map[string]string{"tool": "nmap"}, ""); err != nil {
		t.Fatal(err)
	}

	summary := s.ContextSummary()
	for _, want := range []string{"recon-engagement", "example.com", "Open port", "tool_start"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestSession_ContextSummarySurvivesReload(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewStore(dir, nil)
	s, _ := st.Create("recon-engagement", "")
	rc := 0
	if err := s.AddEvent(protocol.EventToolResult, protocol.ToolResultPayload{
		Tool: "nmap", TaskID: "task-1",
		Result: protocol.ToolResultData{Status: "completed", Output: "22/tcp open", ReturnCode: &rc},
	}, ""); err != nil {
		t.Fatal(err)
	}

	// Before reload, ContextSummary type-switches on the struct directly
	// appended in-process.
	before := s.ContextSummary()
	if !strings.Contains(before, "ran nmap: completed") {
		t.Fatalf("pre-reload summary missing typed tool_result line:\n%s", before)
	}

	st2, err := NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	reloaded, ok := st2.Get(s.ID)
	if !ok {
		t.Fatal("session not reloaded")
	}

	// After a restart, Event.Payload must still type-switch to
	// protocol.ToolResultPayload (not degrade to a generic map), so the
	// reloaded session's summary carries the same detail.
	after := reloaded.ContextSummary()
	if !strings.Contains(after, "ran nmap: completed") {
		t.Fatalf("post-reload summary lost typed tool_result detail:\n%s", after)
	}
}

func TestSession_ReservedFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/clients.json", []byte(`{"not":"a session"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.List()) != 0 {
		t.Errorf("expected clients.json to be skipped, got %d sessions", len(st.List()))
	}
}
