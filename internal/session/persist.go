package session

import "time"

// persistentProjection is the on-disk shape of a session (§4.E): the
// durable fields only. Volatile autonomous-mode state and the credential
// vault are deliberately excluded — the vault must never be serialized
// (§3 invariant), and autonomous state is meaningless across a restart
// since no background loop survives it.
type persistentProjection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TargetScope []string  `json:"target_scope"`
	Notes       string    `json:"notes"`
	ClientID    string    `json:"client_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Messages    []Message `json:"messages"`
	Events      []Event   `json:"events"`
	Findings    []Finding `json:"findings"`
}

// toProjection snapshots the durable fields. Caller must hold s.mu.
func (s *Session) toProjection() persistentProjection {
	return persistentProjection{
		ID:          s.ID,
		Name:        s.Name,
		TargetScope: s.TargetScope,
		Notes:       s.Notes,
		ClientID:    s.ClientID,
		CreatedAt:   s.CreatedAt,
		Messages:    s.Messages,
		Events:      s.Events,
		Findings:    s.Findings,
	}
}

// fromProjection reconstructs a runtime Session from a loaded projection.
// Volatile fields start at their zero values; the vault starts empty,
// matching "at startup no credential has ever been seen this process".
func fromProjection(p persistentProjection) *Session {
	return &Session{
		ID:                    p.ID,
		Name:                  p.Name,
		TargetScope:           append([]string{}, p.TargetScope...),
		Notes:                 p.Notes,
		ClientID:              p.ClientID,
		CreatedAt:             p.CreatedAt,
		Messages:              append([]Message{}, p.Messages...),
		Events:                append([]Event{}, p.Events...),
		Findings:              append([]Finding{}, p.Findings...),
		PendingScopeApprovals: map[string]*ScopeApproval{},
	}
}
