package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/engageops/internal/vault"
)

// reservedFiles are singleton collection files that live in the same data
// directory as per-session JSON files; the startup scan must skip them
// (§4.E).
var reservedFiles = map[string]bool{
	"clients.json":   true,
	"schedules.json": true,
	"settings.json":  true,
	"users.json":     true,
}

// CleanupFunc is invoked (best-effort) on session delete to ask the
// executor to remove any per-task output directories for the deleted
// session (§9 design note).
type CleanupFunc func(sessionID string) error

// Store is the in-memory catalog of sessions, backed by one JSON file per
// session under dir, with atomic write-temp+rename persistence.
type Store struct {
	mu       sync.RWMutex
	dir      string
	sessions map[string]*Session
	cleanup  CleanupFunc
}

// NewStore scans dir for session files (skipping reservedFiles) and
// reconstructs every Session found, per §4.E startup. dir is created if
// absent.
func NewStore(dir string, cleanup CleanupFunc) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: mkdir %s: %w", dir, err)
	}
	st := &Store{dir: dir, sessions: map[string]*Session{}, cleanup: cleanup}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("session: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || reservedFiles[e.Name()] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("session.load.read_failed", "path", path, "error", err)
			continue
		}
		var proj persistentProjection
		if err := json.Unmarshal(data, &proj); err != nil {
			slog.Warn("session.load.parse_failed", "path", path, "error", err)
			continue
		}
		s := fromProjection(proj)
		s.Vault = vault.New()
		st.sessions[s.ID] = s
	}
	for _, s := range st.sessions {
		st.wire(s)
	}
	slog.Info("session.store.loaded", "count", len(st.sessions), "dir", dir)
	return st, nil
}

func (st *Store) wire(s *Session) {
	s.onDirty = st.persist
}

// Create allocates a new session, wires persistence, and writes its
// initial file.
func (st *Store) Create(name, clientID string) (*Session, error) {
	s := New(name, clientID)
	st.mu.Lock()
	st.wire(s)
	st.sessions[s.ID] = s
	st.mu.Unlock()
	if err := st.persist(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the session for id, or (nil, false).
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// List returns every session, sorted by id for stable listing order.
func (st *Store) List() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a session from memory, deletes its on-disk file, and
// best-effort asks the executor cleanup callback to remove its task output
// directories (§3 lifecycle, §9).
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: %s not found", id)
	}
	path := st.filePath(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("session.delete.remove_failed", "path", path, "error", err)
	}
	if st.cleanup != nil {
		if err := st.cleanup(id); err != nil {
			slog.Warn("session.delete.cleanup_failed", "session_id", id, "error", err)
		}
	}
	return nil
}

func (st *Store) filePath(id string) string {
	return filepath.Join(st.dir, id+".json")
}

// persist serializes s's durable projection and writes it via
// write-temp + rename (§4.E, §7 error kind 6: failed writes must not
// corrupt existing files). Logged and non-fatal on failure — in-memory
// state remains authoritative until the next successful write.
func (st *Store) persist(s *Session) error {
	proj := s.toProjection()
	data, err := json.MarshalIndent(proj, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", s.ID, err)
	}
	path := st.filePath(s.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Error("session.persist.write_failed", "session_id", s.ID, "error", err)
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		slog.Error("session.persist.rename_failed", "session_id", s.ID, "error", err)
		return fmt.Errorf("session: rename %s: %w", tmp, err)
	}
	return nil
}
