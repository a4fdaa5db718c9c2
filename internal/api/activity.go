package api

import (
	"net/http"
	"strconv"

	"github.com/lockerhub/lockerhub-core/internal/activity"
)

// handleListActivity returns the paginated activity log, filtered by
// the action, member_id, locker_id, limit, and offset query parameters.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeServiceUnavailable(w, "activity log not available")
		return
	}

	q := r.URL.Query()
	filter := activity.Filter{
		Action:   q.Get("action"),
		MemberID: q.Get("member_id"),
		LockerID: q.Get("locker_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity failed", "error", err)
		writeInternalError(w, "listing activity failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
