package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/engageops/internal/llm"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// Phase is one named stage of a Playbook (§3 GLOSSARY, §4.J).
type Phase struct {
	Name           string
	Goal           string
	SuggestedTools []string
	MaxSteps       int
}

// Playbook is an ordered list of Phases driving a structured autonomous
// run, as opposed to a freeform single-objective run (§3 GLOSSARY).
type Playbook struct {
	Name   string
	Phases []Phase
}

// StartAutonomousPlaybook launches the playbook-driven autonomous loop
// (§4.J) in its own goroutine.
func (d *Driver) StartAutonomousPlaybook(sessionID string, pb Playbook, mode ApprovalMode) error {
	sess, ok := d.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("agent: unknown session %s", sessionID)
	}
	if len(pb.Phases) == 0 {
		return fmt.Errorf("agent: playbook %q has no phases", pb.Name)
	}

	totalSteps := 0
	for _, ph := range pb.Phases {
		totalSteps += ph.MaxSteps
	}
	if err := sess.SetAutoMode(true, pb.Name, totalSteps); err != nil {
		return err
	}
	d.logAndBroadcast(sess, protocol.EventAutoModeChanged, protocol.AutoModeChangedPayload{Enabled: true, Objective: pb.Name, MaxSteps: totalSteps}, "")

	ctx, cancel := context.WithCancel(context.Background())
	d.setAutoCancel(sessionID, cancel)

	go func() {
		defer d.clearAutoCancel(sessionID)
		d.runPlaybook(ctx, sess, pb, mode)
	}()
	return nil
}

func (d *Driver) runPlaybook(ctx context.Context, sess *session.Session, pb Playbook, mode ApprovalMode) {
	for i, phase := range pb.Phases {
		if !d.checkpoint(sess) {
			return
		}
		d.logAndBroadcast(sess, protocol.EventAutoPhaseChanged, protocol.AutoPhaseChangedPayload{
			PhaseNumber: i + 1, PhaseCount: len(pb.Phases), PhaseName: phase.Name, PhaseGoal: phase.Goal,
		}, "")

		conv := &conversation{}
		seed := sess.ContextSummary() + "\n" + phaseSeed(phase)
		conv.append(llm.Message{Role: "user", Content: []llm.ContentBlock{llm.TextBlock(seed)}})

		for step := 0; step < phase.MaxSteps; step++ {
			if !d.checkpoint(sess) {
				return
			}
			current, max := sess.StepBudget()
			cont, err := d.runStep(ctx, sess, conv, mode, current+1, max)
			if err != nil {
				d.broadcast(sess.ID, protocol.EventAutoStatus, protocol.AutoStatusPayload{Message: "phase step failed: " + err.Error()})
				d.finishAutonomous(sess)
				return
			}
			if !cont {
				break
			}
			if err := sess.AdvanceStep(); err != nil {
				d.finishAutonomous(sess)
				return
			}
		}
	}
	d.finishAutonomous(sess)
}

func phaseSeed(phase Phase) string {
	var tools string
	if len(phase.SuggestedTools) > 0 {
		tools = fmt.Sprintf(" Suggested tools for this phase: %s.", strings.Join(phase.SuggestedTools, ", "))
	}
	return fmt.Sprintf(
		"Phase %q begins now. Goal: %s.%s Follow the same propose/execute "+
			"protocol as before; when this phase's goal is satisfied, include "+
			"the literal marker %q in your proposal text instead of proposing "+
			"further action.",
		phase.Name, phase.Goal, tools, phaseCompleteMarker,
	)
}
