package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/engageops/internal/executor"
	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
)

// executeRequest is the shared body shape for /execute and /execute/sync
// (§6: "{tool, parameters, task_id?, timeout}").
type executeRequest struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
	TaskID     string                 `json:"task_id,omitempty"`
	TimeoutS   int                    `json:"timeout,omitempty"`
}

func (s *Server) resolveCommand(req executeRequest) (argv []string, stdin string, ok bool, errMsg string) {
	if req.Tool == tooldefs.BashToolName {
		cmd, _ := req.Parameters["command"].(string)
		if cmd == "" {
			return nil, "", false, "command is required for the bash tool"
		}
		return tooldefs.BuildBashCommand(cmd), "", true, ""
	}
	def, found := s.tools.Get(req.Tool)
	if !found {
		return nil, "", false, "unknown tool definition"
	}
	argv, stdin, err := tooldefs.BuildCommand(def, req.Parameters)
	if err != nil {
		return nil, "", false, err.Error()
	}
	return argv, stdin, true, ""
}

func (s *Server) timeoutFor(req executeRequest) time.Duration {
	if req.TimeoutS > 0 {
		return time.Duration(req.TimeoutS) * time.Second
	}
	return time.Duration(s.cfg.Tools.DefaultTimeoutS) * time.Second
}

// handleExecute is the fire-and-forget /execute endpoint (§6): it submits
// the task and returns immediately with its id and resolved command.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	argv, stdin, ok, errMsg := s.resolveCommand(req)
	if !ok {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.New().String()[:12]
	}
	s.exec.Submit(taskID, req.Tool, argv, stdin, s.timeoutFor(req))
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id": taskID, "command": argvToCommand(argv), "status": "started",
	})
}

// handleExecuteSync blocks until the task reaches a terminal status and
// returns the full record (§6 "/execute/sync").
func (s *Server) handleExecuteSync(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	argv, stdin, ok, errMsg := s.resolveCommand(req)
	if !ok {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.New().String()[:12]
	}
	snap := s.exec.SubmitSync(r.Context(), taskID, req.Tool, argv, stdin, s.timeoutFor(req))
	writeJSON(w, http.StatusOK, taskSnapshotJSON(snap))
}

// handleTaskGet returns a point-in-time task record (§6 "GET /task/{id}").
func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.exec.Registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	writeJSON(w, http.StatusOK, taskSnapshotJSON(snap))
}

// handleTaskKill signals cancellation (§6 "POST /task/{id}/kill").
func (s *Server) handleTaskKill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.exec.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

func argvToCommand(argv []string) string {
	cmd := ""
	for i, a := range argv {
		if i > 0 {
			cmd += " "
		}
		cmd += a
	}
	return cmd
}

func taskSnapshotJSON(snap executor.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"task_id":     snap.ID,
		"tool":        snap.ToolName,
		"command":     snap.Command,
		"status":      snap.Status,
		"started_at":  snap.StartedAt,
		"ended_at":    snap.EndedAt,
		"pid":         snap.PID,
		"return_code": snap.ExitCode,
		"stdout":      snap.Stdout,
		"stderr":      snap.Stderr,
	}
}
