package httpapi

import (
	"net/http"

	"github.com/nextlevelbuilder/engageops/internal/agent"
)

// startAutonomousRequest is the body of POST /api/autonomous/start (§6).
// ApprovalMode is "manual" (default) or "auto"; an empty MaxSteps falls
// back to the driver's configured default.
type startAutonomousRequest struct {
	SessionID    string `json:"session_id"`
	Objective    string `json:"objective"`
	MaxSteps     int    `json:"max_steps,omitempty"`
	ApprovalMode string `json:"approval_mode,omitempty"`
}

// handleAutonomousStart launches the freeform autonomous loop (§4.J, §6
// "POST /api/autonomous/start").
func (s *Server) handleAutonomousStart(w http.ResponseWriter, r *http.Request) {
	var req startAutonomousRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Objective == "" {
		writeError(w, http.StatusBadRequest, "session_id and objective are required")
		return
	}
	if _, ok := s.sessions.Get(req.SessionID); !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = s.cfg.Agent.DefaultMaxSteps
	}
	mode := agent.ApprovalManual
	if req.ApprovalMode == string(agent.ApprovalAuto) {
		mode = agent.ApprovalAuto
	}
	if err := s.driver.StartAutonomousFreeform(req.SessionID, req.Objective, maxSteps, mode); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// stopAutonomousRequest is the body of POST /api/autonomous/stop.
type stopAutonomousRequest struct {
	SessionID string `json:"session_id"`
}

// handleAutonomousStop clears auto_mode; the running loop observes it at
// its next cooperative-cancellation checkpoint (§4.J, §5, §6).
func (s *Server) handleAutonomousStop(w http.ResponseWriter, r *http.Request) {
	var req stopAutonomousRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.driver.StopAutonomous(req.SessionID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// approveAutonomousRequest is the body of POST /api/autonomous/approve
// (§6: "{session_id, approved, step_id}").
type approveAutonomousRequest struct {
	SessionID string `json:"session_id"`
	StepID    string `json:"step_id"`
	Approved  bool   `json:"approved"`
}

// handleAutonomousApprove records the operator's decision on a pending
// step approval. A second request for an already-resolved step_id is a
// no-op that reports 404 (§8 invariant 4: approval is single-writer).
func (s *Server) handleAutonomousApprove(w http.ResponseWriter, r *http.Request) {
	var req approveAutonomousRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.StepID == "" {
		writeError(w, http.StatusBadRequest, "session_id and step_id are required")
		return
	}
	if err := s.driver.Approve(req.SessionID, req.StepID, req.Approved); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
