// Package bus implements the Event Bus (§4.I): per-session websocket
// subscriber fan-out with presence tracking. Broadcast is best-effort — a
// subscriber whose send fails is pruned rather than blocking the publisher.
package bus

import (
	"sync"
	"time"

	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// Subscriber is anything that can receive a published event. The concrete
// websocket connection adapter lives in internal/httpapi so this package
// stays transport-agnostic (§4.I only specifies the fan-out semantics).
type Subscriber interface {
	Send(event *protocol.Event) error
}

type subscription struct {
	id       string
	operator string
	joinedAt time.Time
	conn     Subscriber
}

// Hub tracks subscriber lists per session and fans out events to them.
type Hub struct {
	mu   sync.Mutex
	subs map[string][]*subscription
}

// NewHub returns an empty Event Bus.
func NewHub() *Hub {
	return &Hub{subs: map[string][]*subscription{}}
}

// Join registers conn as a subscriber of sessionID under the given
// subscription id (typically a connection id) and operator display name,
// then publishes an updated presence_update to every subscriber of that
// session (§4.I).
func (h *Hub) Join(sessionID, subID, operator string, conn Subscriber) {
	h.mu.Lock()
	h.subs[sessionID] = append(h.subs[sessionID], &subscription{id: subID, operator: operator, joinedAt: time.Now(), conn: conn})
	h.mu.Unlock()
	h.publishPresence(sessionID)
}

// Leave removes a subscriber and republishes presence.
func (h *Hub) Leave(sessionID, subID string) {
	h.mu.Lock()
	list := h.subs[sessionID]
	out := list[:0]
	for _, sub := range list {
		if sub.id != subID {
			out = append(out, sub)
		}
	}
	h.subs[sessionID] = out
	h.mu.Unlock()
	h.publishPresence(sessionID)
}

// Broadcast sends event to every subscriber of sessionID, pruning any
// subscriber whose Send returns an error (§4.I: "prunes entries whose send
// raised").
func (h *Hub) Broadcast(sessionID string, event *protocol.Event) {
	h.mu.Lock()
	list := append([]*subscription{}, h.subs[sessionID]...)
	h.mu.Unlock()

	var dead []string
	for _, sub := range list {
		if err := sub.conn.Send(event); err != nil {
			dead = append(dead, sub.id)
		}
	}
	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	deadSet := map[string]bool{}
	for _, id := range dead {
		deadSet[id] = true
	}
	remaining := h.subs[sessionID][:0]
	for _, sub := range h.subs[sessionID] {
		if !deadSet[sub.id] {
			remaining = append(remaining, sub)
		}
	}
	h.subs[sessionID] = remaining
	h.mu.Unlock()
}

// Presence returns the operator names currently subscribed to sessionID.
func (h *Hub) Presence(sessionID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.subs[sessionID]))
	for _, sub := range h.subs[sessionID] {
		out = append(out, sub.operator)
	}
	return out
}

func (h *Hub) publishPresence(sessionID string) {
	h.Broadcast(sessionID, protocol.NewEvent(protocol.EventPresenceUpdate, protocol.PresenceUpdatePayload{Users: h.Presence(sessionID)}))
}

// CloseSession disconnects every subscriber of sessionID (for graceful
// shutdown or session deletion).
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	delete(h.subs, sessionID)
	h.mu.Unlock()
}

// CloseAll disconnects every subscriber of every session (§5 shutdown:
// "closes subscriber connections").
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.subs = map[string][]*subscription{}
	h.mu.Unlock()
}
