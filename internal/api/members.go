package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lockerhub/lockerhub-core/internal/engine"
	"github.com/lockerhub/lockerhub-core/internal/member"
)

// createMemberRequest is the body for POST /members.
type createMemberRequest struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	RFIDTag string `json:"rfid_tag"`
}

// updateMemberRequest is the body for PUT /members/{id}.
type updateMemberRequest struct {
	Name    *string `json:"name"`
	Role    *string `json:"role"`
	RFIDTag *string `json:"rfid_tag"`
}

// handleListMembers returns all members.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.members.List(r.Context())
	if err != nil {
		s.logger.Error("listing members failed", "error", err)
		writeInternalError(w, "listing members failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members, "count": len(members)})
}

// handleGetMember returns a single member by ID.
func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.members.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			writeNotFound(w, "member not found")
			return
		}
		writeInternalError(w, "fetching member failed")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleCreateMember registers a member, optionally with an RFID tag.
func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "name is required")
		return
	}

	role := member.RoleMember
	if req.Role != "" {
		role = member.Role(req.Role)
		if !role.IsValid() {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid role")
			return
		}
	}

	m := &member.Member{
		ID:   "mem-" + uuid.NewString()[:8],
		Name: req.Name,
		Role: role,
	}
	if req.RFIDTag != "" {
		m.RFIDTag = &req.RFIDTag
	}

	if err := s.members.Create(r.Context(), m); err != nil {
		if errors.Is(err, member.ErrTagConflict) {
			writeConflict(w, "rfid tag already registered")
			return
		}
		s.logger.Error("creating member failed", "name", req.Name, "error", err)
		writeInternalError(w, "creating member failed")
		return
	}

	s.hub.Broadcast(engine.EventMemberUpdated, m)
	writeJSON(w, http.StatusCreated, m)
}

// handleUpdateMember applies a partial update to a member.
// Assignment fields flow through the engine, never this handler.
func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.members.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			writeNotFound(w, "member not found")
			return
		}
		writeInternalError(w, "fetching member failed")
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name != nil && *req.Name != "" {
		m.Name = *req.Name
	}
	if req.Role != nil {
		role := member.Role(*req.Role)
		if !role.IsValid() {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid role")
			return
		}
		m.Role = role
	}
	if req.RFIDTag != nil {
		// Empty string clears the tag.
		if *req.RFIDTag == "" {
			m.RFIDTag = nil
		} else {
			m.RFIDTag = req.RFIDTag
		}
	}

	if err := s.members.Update(r.Context(), m); err != nil {
		if errors.Is(err, member.ErrTagConflict) {
			writeConflict(w, "rfid tag already registered")
			return
		}
		s.logger.Error("updating member failed", "member_id", m.ID, "error", err)
		writeInternalError(w, "updating member failed")
		return
	}

	s.hub.Broadcast(engine.EventMemberUpdated, m)
	writeJSON(w, http.StatusOK, m)
}

// handleDeleteMember removes a member. Members holding a locker must be
// released first.
func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := s.members.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			writeNotFound(w, "member not found")
			return
		}
		writeInternalError(w, "fetching member failed")
		return
	}
	if m.AssignedLockerID != nil {
		writeConflict(w, "member holds a locker; release it first")
		return
	}

	if err := s.members.Delete(r.Context(), id); err != nil {
		writeInternalError(w, "deleting member failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
