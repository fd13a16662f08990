package api

import (
	"net/http"
	"strconv"
)

// handleListCommands returns recent command executions, newest first.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeUnavailable(w, "command log not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	execs, err := s.commands.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": execs,
		"count":    len(execs),
	})
}
