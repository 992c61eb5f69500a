package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// sessionSubscriber adapts one websocket connection to bus.Subscriber. A
// per-connection write mutex serializes writes, since the hub sends to a
// subscriber from whichever goroutine is broadcasting.
type sessionSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *sessionSubscriber) Send(event *protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(event)
}

// jwtClaims is the subset of a bearer token's payload this server reads.
// Signature verification and user lookup are authentication's job (§1 out
// of scope); the core only checks the session id named in the path exists
// and, if the token parses, that it has not expired.
type jwtClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

// parseJWTClaims best-effort decodes the unsigned payload segment of a
// `header.payload.signature` token. A token that fails to parse is treated
// as anonymous rather than rejected — signature validation is out of
// scope here (§6: "validated out-of-scope of the core").
func parseJWTClaims(token string) (jwtClaims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return jwtClaims{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return jwtClaims{}, false
	}
	var claims jwtClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return jwtClaims{}, false
	}
	return claims, true
}

// handleSessionStream upgrades to a websocket and joins the caller to the
// session's Event Bus subscriber list, publishing presence_update on join
// and leave (§6 "WS /ws/{session_id}?token=...").
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if _, ok := s.sessions.Get(sessionID); !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	operator := "anonymous"
	if token := r.URL.Query().Get("token"); token != "" {
		if claims, ok := parseJWTClaims(token); ok {
			if claims.Exp > 0 && time.Now().Unix() > claims.Exp {
				http.Error(w, "token expired", http.StatusUnauthorized)
				return
			}
			if claims.Sub != "" {
				operator = claims.Sub
			}
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("httpapi.ws_session_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	subID := uuid.New().String()
	sub := &sessionSubscriber{conn: conn}
	s.hub.Join(sessionID, subID, operator, sub)
	defer s.hub.Leave(sessionID, subID)

	// Drain and discard inbound frames; this socket is a server-push
	// channel (§4.I). A read error (close, reset) ends the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
