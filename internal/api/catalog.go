package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.store.ListRoles(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, roles)
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := s.store.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// handlePutRole creates or replaces a role. The path id wins over an empty
// body id; a different body id is rejected.
func (s *Server) handlePutRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "roleID")
	var role core.Role
	if err := decodeBody(w, r, &role); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if role.ID != "" && role.ID != id {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidID,
			fmt.Sprintf("body id %q does not match path id %q", role.ID, id)))
		return
	}
	role.ID = id
	role.UpdatedAt = time.Now()
	if err := s.store.SaveRole(r.Context(), &role); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.logger.Info("role saved", "role_id", id)
	respondJSON(w, http.StatusOK, role)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRole(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.ListTemplates(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.store.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "templateID")
	var tmpl core.Template
	if err := decodeBody(w, r, &tmpl); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if tmpl.ID != "" && tmpl.ID != id {
		s.respondDomainError(w, core.ErrValidation(core.CodeInvalidID,
			fmt.Sprintf("body id %q does not match path id %q", tmpl.ID, id)))
		return
	}
	tmpl.ID = id
	tmpl.UpdatedAt = time.Now()
	if err := s.store.SaveTemplate(r.Context(), &tmpl); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.logger.Info("template saved", "template_id", id, "steps", len(tmpl.Steps))
	respondJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
