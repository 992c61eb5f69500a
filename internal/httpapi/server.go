// Package httpapi implements the External Interfaces (§6): the HTTP and
// websocket surface over the executor, session store, tool-definition
// registry, agent driver, and scheduler, following
// internal/gateway/server.go's Server/BuildMux/upgrader shape.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/engageops/internal/agent"
	"github.com/nextlevelbuilder/engageops/internal/bus"
	"github.com/nextlevelbuilder/engageops/internal/config"
	"github.com/nextlevelbuilder/engageops/internal/executor"
	"github.com/nextlevelbuilder/engageops/internal/scheduler"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// Server wires the executor, session store, tool registry, agent driver,
// event bus, and scheduler onto one *http.ServeMux, mirroring the
// teacher's gateway.Server field layout.
type Server struct {
	cfg       *config.Config
	sessions  *session.Store
	tools     *tooldefs.Registry
	exec      *executor.Executor
	hub       *bus.Hub
	driver    *agent.Driver
	scheduler *scheduler.Scheduler

	upgrader websocket.Upgrader
	limiters *rateLimiters

	httpServer *http.Server
	mux        *http.ServeMux
}

// New constructs a Server. Call BuildMux (or Start) to register routes.
func New(cfg *config.Config, sessions *session.Store, tools *tooldefs.Registry, exec *executor.Executor, hub *bus.Hub, driver *agent.Driver, sched *scheduler.Scheduler) *Server {
	s := &Server{
		cfg: cfg, sessions: sessions, tools: tools, exec: exec, hub: hub, driver: driver, scheduler: sched,
		limiters: newRateLimiters(cfg.Gateway.RateLimitPerMin),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin validates a websocket upgrade's Origin header against the
// configured allowlist. No origins configured, or an empty Origin header
// (non-browser clients), are always allowed (§9 ambient stack note,
// grounded on the teacher's checkOrigin).
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("httpapi.cors_rejected", "origin", origin)
	return false
}

// BuildMux registers every §6 route on a cached *http.ServeMux.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /execute", s.rateLimited(execLimiterKind, s.handleExecute))
	mux.HandleFunc("POST /execute/sync", s.rateLimited(execLimiterKind, s.handleExecuteSync))
	mux.HandleFunc("GET /task/{id}", s.handleTaskGet)
	mux.HandleFunc("POST /task/{id}/kill", s.handleTaskKill)
	mux.HandleFunc("GET /ws/task/{id}", s.handleTaskStream)

	mux.HandleFunc("GET /tools/definitions", s.handleToolsList)
	mux.HandleFunc("POST /tools/definitions", s.handleToolsCreate)
	mux.HandleFunc("GET /tools/definitions/{name}", s.handleToolsGet)
	mux.HandleFunc("PUT /tools/definitions/{name}", s.handleToolsUpdate)
	mux.HandleFunc("DELETE /tools/definitions/{name}", s.handleToolsDelete)

	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions", s.handleSessionList)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("GET /ws/{session_id}", s.handleSessionStream)

	mux.HandleFunc("POST /api/chat", s.rateLimited(chatLimiterKind, s.handleChat))
	mux.HandleFunc("POST /api/autonomous/start", s.handleAutonomousStart)
	mux.HandleFunc("POST /api/autonomous/stop", s.handleAutonomousStop)
	mux.HandleFunc("POST /api/autonomous/approve", s.handleAutonomousApprove)

	mux.HandleFunc("POST /api/schedules", s.handleScheduleCreate)
	mux.HandleFunc("GET /api/schedules", s.handleScheduleList)
	mux.HandleFunc("GET /api/schedules/{id}", s.handleScheduleGet)
	mux.HandleFunc("PUT /api/schedules/{id}", s.handleScheduleUpdate)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.handleScheduleDelete)
	mux.HandleFunc("POST /api/schedules/{id}/enable", s.handleScheduleEnable)
	mux.HandleFunc("POST /api/schedules/{id}/disable", s.handleScheduleDisable)
	mux.HandleFunc("POST /api/schedules/{id}/run", s.handleScheduleRun)

	s.mux = mux
	return mux
}

// Start begins listening, returning once the context is cancelled and the
// server has been gracefully shut down (§5 shutdown).
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	slog.Info("httpapi.starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "protocol": protocol.ProtocolVersion})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
