package httpapi

import (
	"net/http"

	"github.com/nextlevelbuilder/engageops/internal/session"
)

// createSessionRequest is the body of POST /api/sessions.
type createSessionRequest struct {
	Name     string `json:"name"`
	ClientID string `json:"client_id,omitempty"`
}

// handleSessionCreate creates a session (§6 "POST /api/sessions").
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.sessions.Create(req.Name, req.ClientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionSummary(sess))
}

// handleSessionList returns every session. Not named explicitly by §6's
// table but required to make sessions discoverable; kept minimal (id,
// name, scope, client id, creation time) rather than the full persisted
// projection.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	out := make([]map[string]interface{}, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           sess.ID,
		"name":         sess.Name,
		"client_id":    sess.ClientID,
		"created_at":   sess.CreatedAt,
		"target_scope": sess.ScopeSnapshot(),
		"messages":     sess.Messages,
		"findings":     sess.Findings,
	})
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.hub.CloseSession(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func sessionSummary(sess *session.Session) map[string]interface{} {
	return map[string]interface{}{
		"id":           sess.ID,
		"name":         sess.Name,
		"client_id":    sess.ClientID,
		"created_at":   sess.CreatedAt,
		"target_scope": sess.ScopeSnapshot(),
	}
}
