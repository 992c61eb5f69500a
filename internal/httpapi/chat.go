package httpapi

import "net/http"

// chatRequest is the body of POST /api/chat (§6: "{session_id, message}").
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	User      string `json:"user,omitempty"`
}

// handleChat runs one chat-mode turn, or — if the session is currently
// running an autonomous loop — queues the message for the loop's approval-
// gate drain instead of starting a competing conversation (§4.J "operator
// messages queued mid-run").
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}
	sess, ok := s.sessions.Get(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	if sess.IsAutoMode() {
		if err := sess.EnqueueOperatorMessage(req.Message); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued_for_autonomous_run"})
		return
	}

	reply, err := s.driver.Chat(r.Context(), req.SessionID, req.Message, req.User)
	if err != nil {
		// §7 error kind 4: an LLM call failure in chat mode surfaces as 5xx.
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
