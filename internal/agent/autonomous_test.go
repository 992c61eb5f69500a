package agent

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/engageops/internal/llm"
)

func TestFreeform_PhaseCompleteStopsRun(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.ChatResponse{
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("nothing left to do. PHASE COMPLETE")}}},
	}}
	d, sess := newTestDriver(t, provider, nil)

	if err := d.StartAutonomousFreeform(sess.ID, "recon example.com", 5, ApprovalAuto); err != nil {
		t.Fatalf("StartAutonomousFreeform: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sess.IsAutoMode() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if sess.IsAutoMode() {
		t.Fatalf("expected autonomous mode to have stopped")
	}
	cur, _ := sess.StepBudget()
	if cur != 0 {
		t.Fatalf("expected no steps advanced when the first proposal is PHASE COMPLETE, got %d", cur)
	}
}

func TestFreeform_AutoApprovalExecutesStepThenStopsOnPhaseComplete(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.ChatResponse{
		// step 1 propose
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("I will record a finding.")}}},
		// step 1 execute: one tool call then stop
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{
			llm.ToolUseBlock("t1", "record_finding", map[string]interface{}{
				"severity": "info", "title": "note", "description": "observed something",
			}),
		}}},
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("no further action needed")}}},
		// step 2 propose: signal the run is done before consuming more calls
		{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("nothing more to do. PHASE COMPLETE")}}},
	}}
	d, sess := newTestDriver(t, provider, nil)

	if err := d.StartAutonomousFreeform(sess.ID, "note things", 3, ApprovalAuto); err != nil {
		t.Fatalf("StartAutonomousFreeform: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for sess.IsAutoMode() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if sess.IsAutoMode() {
		t.Fatalf("expected autonomous mode to have stopped")
	}
	if len(sess.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(sess.Findings))
	}
}

func TestStopAutonomous_CheckspointExitsLoop(t *testing.T) {
	// A provider that never signals PHASE COMPLETE; the only way the loop
	// ends is via the checkpoint cooperative-cancellation path.
	provider := &blockingProposeProvider{}
	d, sess := newTestDriver(t, provider, nil)

	if err := d.StartAutonomousFreeform(sess.ID, "long objective", 100, ApprovalAuto); err != nil {
		t.Fatalf("StartAutonomousFreeform: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := d.StopAutonomous(sess.ID); err != nil {
		t.Fatalf("StopAutonomous: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sess.IsAutoMode() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if sess.IsAutoMode() {
		t.Fatalf("expected auto_mode to be cleared after StopAutonomous")
	}
}

// blockingProposeProvider always proposes a no-op step with no tool calls
// and never emits PHASE COMPLETE, forcing the loop to run until either the
// step budget or a cooperative-cancellation checkpoint stops it.
type blockingProposeProvider struct{}

func (p *blockingProposeProvider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: []llm.ContentBlock{llm.TextBlock("still working")}}}, nil
}
func (p *blockingProposeProvider) DefaultModel() string { return "test-model" }
func (p *blockingProposeProvider) Name() string         { return "blocking" }
