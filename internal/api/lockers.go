package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lockerhub/lockerhub-core/internal/engine"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/locker"
	"github.com/lockerhub/lockerhub-core/internal/member"
)

// createLockerRequest is the body for POST /lockers.
type createLockerRequest struct {
	Name      string         `json:"name"`
	Topic     string         `json:"topic"`
	IPAddress string         `json:"ip_address"`
	LockIndex int            `json:"lock_index"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata"`
}

// updateLockerRequest is the body for PUT /lockers/{id}. Pointer fields
// distinguish "not sent" from zero values.
type updateLockerRequest struct {
	Name      *string        `json:"name"`
	Topic     *string        `json:"topic"`
	IPAddress *string        `json:"ip_address"`
	LockIndex *int           `json:"lock_index"`
	Status    *string        `json:"status"`
	Metadata  map[string]any `json:"metadata"`
}

// assignRequest is the body for POST /lockers/{id}/assign.
type assignRequest struct {
	MemberID string `json:"member_id"`
}

// handleListLockers returns all lockers.
func (s *Server) handleListLockers(w http.ResponseWriter, r *http.Request) {
	lockers, err := s.registry.ListLockers(r.Context())
	if err != nil {
		s.logger.Error("listing lockers failed", "error", err)
		writeInternalError(w, "listing lockers failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lockers": lockers, "count": len(lockers)})
}

// handleGetLocker returns a single locker by ID.
func (s *Server) handleGetLocker(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.GetLocker(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, locker.ErrLockerNotFound) {
			writeNotFound(w, "locker not found")
			return
		}
		writeInternalError(w, "fetching locker failed")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleCreateLocker registers a locker manually (ahead of discovery).
func (s *Server) handleCreateLocker(w http.ResponseWriter, r *http.Request) {
	var req createLockerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "name and topic are required")
		return
	}

	status := locker.StatusAvailable
	if req.Status != "" {
		status = locker.Status(req.Status)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid status")
			return
		}
	}

	lockIndex := req.LockIndex
	if lockIndex < 1 {
		lockIndex = 1
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	l := &locker.Locker{
		ID:        "lkr-" + uuid.NewString()[:8],
		Name:      req.Name,
		Topic:     req.Topic,
		IPAddress: req.IPAddress,
		LockIndex: lockIndex,
		Status:    status,
		Metadata:  metadata,
	}

	if err := s.registry.CreateLocker(r.Context(), l); err != nil {
		if errors.Is(err, locker.ErrLockerExists) {
			writeConflict(w, "locker already exists")
			return
		}
		s.logger.Error("creating locker failed", "name", req.Name, "error", err)
		writeInternalError(w, "creating locker failed")
		return
	}

	s.hub.Broadcast(engine.EventLockerCreated, l)
	writeJSON(w, http.StatusCreated, l)
}

// handleUpdateLocker applies a partial update to a locker.
// Assignment fields are off limits here; those flow through the engine.
func (s *Server) handleUpdateLocker(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.GetLocker(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, locker.ErrLockerNotFound) {
			writeNotFound(w, "locker not found")
			return
		}
		writeInternalError(w, "fetching locker failed")
		return
	}

	var req updateLockerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Topic != nil {
		l.Topic = *req.Topic
	}
	if req.IPAddress != nil {
		l.IPAddress = *req.IPAddress
	}
	if req.LockIndex != nil && *req.LockIndex >= 1 {
		l.LockIndex = *req.LockIndex
	}
	if req.Status != nil {
		status := locker.Status(*req.Status)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid status")
			return
		}
		// Occupied is an engine-owned state tied to a member assignment.
		if status == locker.StatusOccupied && l.AssignedMemberID == nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation,
				"use /assign to occupy a locker")
			return
		}
		l.Status = status
	}
	if req.Metadata != nil {
		l.Metadata = req.Metadata
	}

	if err := s.registry.UpdateLocker(r.Context(), l); err != nil {
		s.logger.Error("updating locker failed", "locker_id", l.ID, "error", err)
		writeInternalError(w, "updating locker failed")
		return
	}

	s.hub.Broadcast(engine.EventLockerUpdated, l)
	writeJSON(w, http.StatusOK, l)
}

// handleDeleteLocker removes a locker. Occupied lockers must be
// released first so the member side never dangles.
func (s *Server) handleDeleteLocker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	l, err := s.registry.GetLocker(r.Context(), id)
	if err != nil {
		if errors.Is(err, locker.ErrLockerNotFound) {
			writeNotFound(w, "locker not found")
			return
		}
		writeInternalError(w, "fetching locker failed")
		return
	}
	if l.Status == locker.StatusOccupied {
		writeConflict(w, "locker is occupied; release it first")
		return
	}

	if err := s.registry.DeleteLocker(r.Context(), id); err != nil {
		writeInternalError(w, "deleting locker failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleUnlockLocker publishes a manual unlock command.
func (s *Server) handleUnlockLocker(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeServiceUnavailable(w, "engine not available")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.engine.ManualUnlock(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, locker.ErrLockerNotFound):
			writeNotFound(w, "locker not found")
		case errors.Is(err, mqtt.ErrNotConnected):
			writeServiceUnavailable(w, "broker not connected")
		default:
			s.logger.Error("manual unlock failed", "locker_id", id, "error", err)
			writeInternalError(w, "unlock failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"unlocked": id})
}

// handleAssignLocker assigns a locker to a member on behalf of an operator.
func (s *Server) handleAssignLocker(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeServiceUnavailable(w, "engine not available")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MemberID == "" {
		writeBadRequest(w, "member_id is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.engine.AssignLocker(r.Context(), id, req.MemberID); err != nil {
		switch {
		case errors.Is(err, locker.ErrLockerNotFound):
			writeNotFound(w, "locker not found")
		case errors.Is(err, member.ErrMemberNotFound):
			writeNotFound(w, "member not found")
		case errors.Is(err, engine.ErrAlreadyAssigned), errors.Is(err, engine.ErrLockerUnavailable):
			writeConflict(w, err.Error())
		default:
			s.logger.Error("manual assignment failed",
				"locker_id", id, "member_id", req.MemberID, "error", err)
			writeInternalError(w, "assignment failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"locker_id": id, "member_id": req.MemberID})
}

// handleReleaseLocker clears a locker's assignment on behalf of an operator.
func (s *Server) handleReleaseLocker(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeServiceUnavailable(w, "engine not available")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.engine.ReleaseLocker(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, locker.ErrLockerNotFound):
			writeNotFound(w, "locker not found")
		case errors.Is(err, engine.ErrNotAssigned):
			writeConflict(w, err.Error())
		default:
			s.logger.Error("manual release failed", "locker_id", id, "error", err)
			writeInternalError(w, "release failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"released": id})
}
