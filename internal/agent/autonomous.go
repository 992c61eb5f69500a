package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/engageops/internal/llm"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// phaseCompleteMarker is the literal text the LLM emits during the propose
// phase to signal it is done with the current phase/run (§4.J).
const phaseCompleteMarker = "PHASE COMPLETE"

// ApprovalMode selects how a step's propose-phase output is greenlit
// before execution (§4.J "if approval-mode is auto...").
type ApprovalMode string

const (
	ApprovalManual ApprovalMode = "manual"
	ApprovalAuto   ApprovalMode = "auto"
)

// conversation is the mutable message history threaded through one
// autonomous run (freeform or one playbook phase).
type conversation struct {
	messages []llm.Message
}

func (c *conversation) append(msgs ...llm.Message) {
	c.messages = append(c.messages, msgs...)
}

// StartAutonomousFreeform launches the freeform autonomous loop (§4.J) in
// its own goroutine and returns immediately; progress is observed via the
// session event stream. Only one autonomous run may be active per session
// at a time — StopAutonomous or a natural stop condition clears it.
func (d *Driver) StartAutonomousFreeform(sessionID, objective string, maxSteps int, mode ApprovalMode) error {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("agent: unknown session %s", sessionID)
	}
	if sess.IsAutoMode() {
		return fmt.Errorf("agent: an autonomous run is already active for session %s", sessionID)
	}
	if err := sess.SetAutoMode(true, objective, maxSteps); err != nil {
		return err
	}
	d.logAndBroadcast(sess, protocol.EventAutoModeChanged, protocol.AutoModeChangedPayload{Enabled: true, Objective: objective, MaxSteps: maxSteps}, "")

	ctx, cancel := context.WithCancel(context.Background())
	d.setAutoCancel(sessionID, cancel)

	go func() {
		defer d.clearAutoCancel(sessionID)
		d.runFreeform(ctx, sess, objective, maxSteps, mode)
	}()
	return nil
}

// StopAutonomous clears the auto_mode flag; the running loop observes it
// at its next checkpoint and exits (§4.J "cooperative cancellation").
func (d *Driver) StopAutonomous(sessionID string) error {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("agent: unknown session %s", sessionID)
	}
	if err := sess.SetAutoMode(false, "", 0); err != nil {
		return err
	}
	d.logAndBroadcast(sess, protocol.EventAutoModeChanged, protocol.AutoModeChangedPayload{Enabled: false}, "")
	d.cancelAuto(sessionID)
	return nil
}

// Approve records an operator's decision on a pending step approval.
func (d *Driver) Approve(sessionID, stepID string, approved bool) error {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("agent: unknown session %s", sessionID)
	}
	ok2, err := sess.ResolveApproval(stepID, approved)
	if err != nil {
		return err
	}
	if !ok2 {
		return fmt.Errorf("agent: no outstanding approval %s", stepID)
	}
	d.logAndBroadcast(sess, protocol.EventAutoStepDecision, protocol.AutoStepDecisionPayload{StepID: stepID, Approved: approved}, "")
	return nil
}

func (d *Driver) runFreeform(ctx context.Context, sess *session.Session, objective string, maxSteps int, mode ApprovalMode) {
	conv := &conversation{}
	seed := sess.ContextSummary() + "\n" + freeformSeed(objective, maxSteps)
	conv.append(llm.Message{Role: "user", Content: []llm.ContentBlock{llm.TextBlock(seed)}})

	for {
		current, max := sess.StepBudget()
		if current >= max {
			break
		}
		if !d.checkpoint(sess) {
			return
		}

		cont, err := d.runStep(ctx, sess, conv, mode, current+1, max)
		if err != nil {
			d.broadcast(sess.ID, protocol.EventAutoStatus, protocol.AutoStatusPayload{Message: "step failed: " + err.Error()})
			break
		}
		if !cont {
			// PHASE COMPLETE, rejection, or timeout: the step never ran to
			// completion, so it does not consume the step budget.
			break
		}
		if err := sess.AdvanceStep(); err != nil {
			break
		}
		if !d.checkpoint(sess) {
			return
		}
	}

	d.finishAutonomous(sess)
}

// checkpoint is the cooperative-cancellation gate checked at every
// suspension point in autonomous mode (§4.J, §5).
func (d *Driver) checkpoint(sess *session.Session) bool {
	return sess.IsAutoMode()
}

func (d *Driver) finishAutonomous(sess *session.Session) {
	if !sess.IsAutoMode() {
		return
	}
	_ = sess.SetAutoMode(false, "", 0)
	d.logAndBroadcast(sess, protocol.EventAutoModeChanged, protocol.AutoModeChangedPayload{Enabled: false}, "")
}

func freeformSeed(objective string, maxSteps int) string {
	return fmt.Sprintf(
		"You are operating autonomously against the objective: %s\n\n"+
			"You have a budget of %d steps. Each step has two phases: first "+
			"describe in plain text exactly what you intend to do next (no "+
			"tool calls), then — once approved — you will be asked to execute "+
			"exactly that plan using the available tools. When the objective "+
			"is fully satisfied, include the literal marker %q in your "+
			"proposal text instead of proposing further action.",
		objective, maxSteps, phaseCompleteMarker,
	)
}

// runStep executes one full propose/approve/execute cycle (§4.J "step
// function"). It returns cont=false when the run should stop (PHASE
// COMPLETE, rejection, timeout, or cancellation).
func (d *Driver) runStep(ctx context.Context, sess *session.Session, conv *conversation, mode ApprovalMode, stepNumber, maxSteps int) (cont bool, err error) {
	ctx, span := startSpan(ctx, "agent.auto_step", sess)
	defer span.End()

	if !d.checkpoint(sess) {
		return false, nil
	}

	// Propose phase: call without tools.
	proposeResp, err := d.provider.Chat(ctx, llm.ChatRequest{
		System: d.cfg.SystemPrompt, Messages: conv.messages, Model: d.pickModel(), MaxTokens: d.cfg.MaxTokens,
	})
	if err != nil {
		return false, fmt.Errorf("propose call failed: %w", err)
	}
	if !d.checkpoint(sess) {
		return false, nil
	}
	conv.append(proposeResp.Message)
	proposalText := proposeResp.Message.Text()
	d.broadcast(sess.ID, protocol.EventAutoStatus, protocol.AutoStatusPayload{Message: proposalText, Step: stepNumber, MaxSteps: maxSteps})

	if strings.Contains(proposalText, phaseCompleteMarker) {
		return false, nil
	}

	stepID := uuid.New().String()[:12]

	// Approval gate.
	approved, err := d.gateApproval(ctx, sess, conv, stepID, stepNumber, proposalText, mode)
	if err != nil {
		return false, err
	}
	if !approved {
		return false, nil
	}
	if !d.checkpoint(sess) {
		return false, nil
	}

	// Execute phase.
	conv.append(llm.Message{Role: "user", Content: []llm.ContentBlock{llm.TextBlock(
		"Execute exactly what you just proposed, using the available tools.",
	)}})

	var executedCalls []protocol.ProposedToolCall
	for iter := 0; iter < d.cfg.MaxToolIterations; iter++ {
		if !d.checkpoint(sess) {
			return false, nil
		}
		resp, err := d.provider.Chat(ctx, llm.ChatRequest{
			System: d.cfg.SystemPrompt, Messages: conv.messages, Tools: ToolSchema(), Model: d.pickModel(), MaxTokens: d.cfg.MaxTokens,
		})
		if err != nil {
			return false, fmt.Errorf("execute call failed: %w", err)
		}
		if !d.checkpoint(sess) {
			return false, nil
		}
		conv.append(resp.Message)

		if text := resp.Message.Text(); text != "" {
			d.broadcast(sess.ID, protocol.EventAutoStatus, protocol.AutoStatusPayload{Message: text, Step: stepNumber, MaxSteps: maxSteps})
		}

		calls := resp.Message.ToolCalls()
		if len(calls) == 0 {
			break
		}

		var resultBlocks []llm.ContentBlock
		for _, call := range calls {
			if !d.checkpoint(sess) {
				return false, nil
			}
			result := d.runToolCall(ctx, sess, call, "autonomous")
			if !d.checkpoint(sess) {
				return false, nil
			}
			resultBlocks = append(resultBlocks, result)
			executedCalls = append(executedCalls, protocol.ProposedToolCall{Name: call.Name, Input: call.Input})
		}
		conv.append(llm.Message{Role: "user", Content: resultBlocks})
	}

	d.logAndBroadcast(sess, protocol.EventAutoStepComplete, protocol.AutoStepCompletePayload{
		StepID: stepID, StepNumber: stepNumber, Summary: proposalText, ToolCalls: executedCalls,
	}, "")

	return true, nil
}

// gateApproval publishes a pending_approval (unless mode is auto) and
// blocks until resolved, rejected, or the 600s timeout elapses, draining
// operator messages into conversational replies while it waits (§4.J).
func (d *Driver) gateApproval(ctx context.Context, sess *session.Session, conv *conversation, stepID string, stepNumber int, proposalText string, mode ApprovalMode) (bool, error) {
	if mode == ApprovalAuto {
		d.logAndBroadcast(sess, protocol.EventAutoStepPending, protocol.AutoStepPendingPayload{
			StepID: stepID, StepNumber: stepNumber, Description: proposalText, AutoApproved: true,
		}, "")
		return true, nil
	}

	if _, err := sess.PublishPendingApproval(stepID, stepNumber, proposalText, nil); err != nil {
		return false, err
	}
	d.logAndBroadcast(sess, protocol.EventAutoStepPending, protocol.AutoStepPendingPayload{
		StepID: stepID, StepNumber: stepNumber, Description: proposalText,
	}, "")
	defer sess.ClearApproval()

	deadline := time.Now().Add(d.cfg.StepApprovalTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if pa := sess.CurrentApproval(); pa != nil && pa.StepID == stepID && pa.Resolved {
			return pa.Decision.Approved, nil
		}
		if !d.checkpoint(sess) {
			return false, nil
		}
		if time.Now().After(deadline) {
			d.broadcast(sess.ID, protocol.EventAutoStatus, protocol.AutoStatusPayload{Message: "step approval timed out", Step: stepNumber})
			return false, nil
		}

		for _, msg := range sess.DrainOperatorMessages() {
			conv.append(llm.Message{Role: "user", Content: []llm.ContentBlock{llm.TextBlock(sess.Vault.Tokenize(msg))}})
			reply, err := d.provider.Chat(ctx, llm.ChatRequest{System: d.cfg.SystemPrompt, Messages: conv.messages, Model: d.pickModel(), MaxTokens: d.cfg.MaxTokens})
			if err != nil {
				continue
			}
			conv.append(reply.Message)
			d.logAndBroadcast(sess, protocol.EventAutoAIReply, protocol.AutoAIReplyPayload{Message: reply.Message.Text()}, "")
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

func (d *Driver) setAutoCancel(sessionID string, cancel context.CancelFunc) {
	d.autoMu.Lock()
	defer d.autoMu.Unlock()
	d.autoCancels[sessionID] = cancel
}

func (d *Driver) clearAutoCancel(sessionID string) {
	d.autoMu.Lock()
	defer d.autoMu.Unlock()
	delete(d.autoCancels, sessionID)
}

func (d *Driver) cancelAuto(sessionID string) {
	d.autoMu.Lock()
	cancel, ok := d.autoCancels[sessionID]
	d.autoMu.Unlock()
	if ok {
		cancel()
	}
}
