package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/engageops/internal/executor"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// handleTaskStream upgrades to a websocket and relays executor.Stream
// frames until a terminal "done" frame is sent or the client disconnects
// (§6 "WS /ws/task/{id}").
func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.exec.Registry.Get(id); !ok {
		http.Error(w, "unknown task", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("httpapi.ws_task_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	frames := make(chan executor.StreamFrame, 16)
	go s.exec.Stream(ctx, id, frames)

	for frame := range frames {
		msg := protocol.TaskStreamFrame{Type: frame.Type, Data: frame.Data, Status: frame.Status, ReturnCode: frame.ReturnCode}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
