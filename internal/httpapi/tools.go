package httpapi

import (
	"net/http"

	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
)

// handleToolsList returns the full catalog (§6 "GET /tools/definitions").
func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tools.List())
}

// handleToolsCreate validates and inserts a new definition (§6 "POST
// /tools/definitions", §7 error kind 7: missing binary/duplicate name
// rejected at the API boundary).
func (s *Server) handleToolsCreate(w http.ResponseWriter, r *http.Request) {
	var def tooldefs.Definition
	if err := readJSON(r, &def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, exists := s.tools.Get(def.Name); exists {
		writeError(w, http.StatusConflict, "a definition with that name already exists")
		return
	}
	if err := s.tools.Put(def); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// handleToolsGet returns a single definition (§6 "GET /tools/definitions/{name}").
func (s *Server) handleToolsGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	def, ok := s.tools.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool definition")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleToolsUpdate replaces an existing definition (§6 "PUT
// /tools/definitions/{name}").
func (s *Server) handleToolsUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var def tooldefs.Definition
	if err := readJSON(r, &def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	def.Name = name
	if err := s.tools.Put(def); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleToolsDelete removes a definition (§6 "DELETE /tools/definitions/{name}").
func (s *Server) handleToolsDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.tools.Delete(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
