package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-zigbee/internal/audit"
)

// handleListCommands returns the command history, most recent first.
//
// Query parameters:
//   - device: filter by device name
//   - result: filter by result (success, error)
//   - limit, offset: pagination
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeNotFound(w, "command history is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Device: q.Get("device"),
		Result: q.Get("result"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	res, err := s.commands.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
