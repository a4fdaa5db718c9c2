package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lockerhub/lockerhub-core/internal/locker"
)

// groupRequest is the body for POST /groups and PUT /groups/{id}.
type groupRequest struct {
	Name      string   `json:"name"`
	Color     string   `json:"color"`
	LockerIDs []string `json:"locker_ids"`
}

// handleListGroups returns all locker groups.
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeServiceUnavailable(w, "group repository not available")
		return
	}

	groups, err := s.groups.List(r.Context())
	if err != nil {
		s.logger.Error("listing groups failed", "error", err)
		writeInternalError(w, "listing groups failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

// handleGetGroup returns a single group by ID.
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeServiceUnavailable(w, "group repository not available")
		return
	}

	g, err := s.groups.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, locker.ErrGroupNotFound) {
			writeNotFound(w, "group not found")
			return
		}
		writeInternalError(w, "fetching group failed")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleCreateGroup creates a locker group.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeServiceUnavailable(w, "group repository not available")
		return
	}

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "name is required")
		return
	}
	if err := s.validateGroupMembers(r, req.LockerIDs); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	g := &locker.Group{
		ID:        "grp-" + uuid.NewString()[:8],
		Name:      req.Name,
		Color:     req.Color,
		LockerIDs: req.LockerIDs,
	}

	if err := s.groups.Create(r.Context(), g); err != nil {
		if errors.Is(err, locker.ErrGroupExists) {
			writeConflict(w, "group already exists")
			return
		}
		s.logger.Error("creating group failed", "name", req.Name, "error", err)
		writeInternalError(w, "creating group failed")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// handleUpdateGroup replaces a group's name, color, and membership.
func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeServiceUnavailable(w, "group repository not available")
		return
	}

	g, err := s.groups.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, locker.ErrGroupNotFound) {
			writeNotFound(w, "group not found")
			return
		}
		writeInternalError(w, "fetching group failed")
		return
	}

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name != "" {
		g.Name = req.Name
	}
	if req.Color != "" {
		g.Color = req.Color
	}
	if req.LockerIDs != nil {
		if err := s.validateGroupMembers(r, req.LockerIDs); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		g.LockerIDs = req.LockerIDs
	}

	if err := s.groups.Update(r.Context(), g); err != nil {
		s.logger.Error("updating group failed", "group_id", g.ID, "error", err)
		writeInternalError(w, "updating group failed")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleDeleteGroup removes a group. Lockers in the group are not
// touched; they simply lose their fallback scope.
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeServiceUnavailable(w, "group repository not available")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.groups.Delete(r.Context(), id); err != nil {
		if errors.Is(err, locker.ErrGroupNotFound) {
			writeNotFound(w, "group not found")
			return
		}
		writeInternalError(w, "deleting group failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// validateGroupMembers checks every referenced locker exists.
func (s *Server) validateGroupMembers(r *http.Request, lockerIDs []string) error {
	for _, id := range lockerIDs {
		if _, err := s.registry.GetLocker(r.Context(), id); err != nil {
			return errors.New("unknown locker: " + id)
		}
	}
	return nil
}
