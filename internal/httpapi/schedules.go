package httpapi

import (
	"net/http"
	"time"

	"github.com/nextlevelbuilder/engageops/internal/scheduler"
)

// createScheduleRequest is the body of POST /api/schedules (§6).
type createScheduleRequest struct {
	SessionID  string                 `json:"session_id"`
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
	Type       string                 `json:"type"` // "once" | "cron"
	RunAt      time.Time              `json:"run_at,omitempty"`
	CronExpr   string                 `json:"cron_expr,omitempty"`
	Label      string                 `json:"label,omitempty"`
	Creator    string                 `json:"creator,omitempty"`
}

// handleScheduleCreate validates and registers a job (§6 "POST
// /api/schedules", §7 error kind 7: cron expressions validated at create
// time).
func (s *Server) handleScheduleCreate(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.ToolName == "" {
		writeError(w, http.StatusBadRequest, "session_id and tool_name are required")
		return
	}
	if _, ok := s.sessions.Get(req.SessionID); !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	schedType := scheduler.ScheduleOnce
	if req.Type == string(scheduler.ScheduleCron) {
		schedType = scheduler.ScheduleCron
	}
	job, err := s.scheduler.Create(req.SessionID, req.ToolName, req.Parameters, schedType, req.RunAt, req.CronExpr, req.Label, req.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// handleScheduleList returns every job (§6 "GET /api/schedules").
func (s *Server) handleScheduleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.List())
}

// handleScheduleGet returns one job (§6 "GET /api/schedules/{id}").
func (s *Server) handleScheduleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.scheduler.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown schedule")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// updateScheduleRequest is the body of PUT /api/schedules/{id}: only the
// trigger is mutable (§4.H "updating the trigger unregisters and re-arms
// it").
type updateScheduleRequest struct {
	Type     string    `json:"type"`
	RunAt    time.Time `json:"run_at,omitempty"`
	CronExpr string    `json:"cron_expr,omitempty"`
}

func (s *Server) handleScheduleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateScheduleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	schedType := scheduler.ScheduleOnce
	if req.Type == string(scheduler.ScheduleCron) {
		schedType = scheduler.ScheduleCron
	}
	if err := s.scheduler.Update(id, schedType, req.RunAt, req.CronExpr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, _ := s.scheduler.Get(id)
	writeJSON(w, http.StatusOK, job)
}

// handleScheduleDelete unregisters a job (§6 "DELETE /api/schedules/{id}").
func (s *Server) handleScheduleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.scheduler.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown schedule")
		return
	}
	if err := s.scheduler.Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleScheduleEnable re-arms a disabled job (§6 "/{id}/enable").
func (s *Server) handleScheduleEnable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.scheduler.Enable(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}

// handleScheduleDisable pauses a job's trigger (§6 "/{id}/disable").
func (s *Server) handleScheduleDisable(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.scheduler.Disable(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// handleScheduleRun forces a completed/failed/disabled job back to
// scheduled and fires it immediately (§4.H manual run-now, §6 "/{id}/run").
func (s *Server) handleScheduleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.scheduler.RunNow(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}
